package repoconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tcs := []struct {
		name        string
		data        string
		expected    Config
		invalidKeys []string
	}{
		{
			name:     "empty file",
			data:     "",
			expected: Default(),
		},
		{
			name: "all keys",
			data: `[DEFAULT]
baseMergeTimeInHours = 24
perCommitTimeInHours = 1.5
baseCloseTimeInHours = 48
merge_method = rebase
`,
			expected: Config{
				BaseMergeTimeInHours: 24,
				PerCommitTimeInHours: 1.5,
				BaseCloseTimeInHours: 48,
				MergeMethod:          MergeMethodRebase,
			},
		},
		{
			name: "comments and case insensitive keys",
			data: `# worlddriven settings
; semicolon comment
[DEFAULT]
BASEMERGETIMEINHOURS = 12
merge_method = Merge
`,
			expected: Config{
				BaseMergeTimeInHours: 12,
				PerCommitTimeInHours: DefaultPerCommitTimeInHours,
				BaseCloseTimeInHours: DefaultBaseCloseTimeInHours,
				MergeMethod:          MergeMethodMerge,
			},
		},
		{
			name: "keys outside of DEFAULT are ignored",
			data: `baseMergeTimeInHours = 1
[other]
baseCloseTimeInHours = 2
[DEFAULT]
perCommitTimeInHours = 3
`,
			expected: Config{
				BaseMergeTimeInHours: DefaultBaseMergeTimeInHours,
				PerCommitTimeInHours: 3,
				BaseCloseTimeInHours: DefaultBaseCloseTimeInHours,
				MergeMethod:          DefaultMergeMethod,
			},
		},
		{
			name: "invalid values fall back individually",
			data: `[DEFAULT]
baseMergeTimeInHours = abc
perCommitTimeInHours = -1
baseCloseTimeInHours = 10
merge_method = fast-forward
`,
			expected: Config{
				BaseMergeTimeInHours: DefaultBaseMergeTimeInHours,
				PerCommitTimeInHours: DefaultPerCommitTimeInHours,
				BaseCloseTimeInHours: 10,
				MergeMethod:          DefaultMergeMethod,
			},
			invalidKeys: []string{keyBaseMergeTime, keyPerCommitTime, keyMergeMethod},
		},
		{
			name: "non finite values",
			data: `[DEFAULT]
baseMergeTimeInHours = inf
baseCloseTimeInHours = NaN
`,
			expected:    Default(),
			invalidKeys: []string{keyBaseMergeTime, keyBaseCloseTime},
		},
		{
			name: "values exceeding the maximum duration",
			data: `[DEFAULT]
baseMergeTimeInHours = 1e306
perCommitTimeInHours = 1e10
baseCloseTimeInHours = 2500000
`,
			expected: Config{
				BaseMergeTimeInHours: DefaultBaseMergeTimeInHours,
				PerCommitTimeInHours: DefaultPerCommitTimeInHours,
				BaseCloseTimeInHours: MaxHours,
				MergeMethod:          DefaultMergeMethod,
			},
			invalidKeys: []string{keyBaseMergeTime, keyPerCommitTime},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cfg, invalidKeys, err := Parse([]byte(tc.data))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, cfg)
			assert.Equal(t, tc.invalidKeys, invalidKeys)
		})
	}
}

func TestParseMalformedFile(t *testing.T) {
	cfg, _, err := Parse([]byte("[DEFAULT\nbaseMergeTimeInHours = 1\n"))
	require.Error(t, err)
	assert.Equal(t, Default(), cfg)
}
