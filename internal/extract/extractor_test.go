package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoose(t *testing.T) {
	tests := []struct {
		name               string
		isAuthenticated    bool
		hasCredential      bool
		placeholderEnabled bool
		want               Strategy
		wantSetup          bool
	}{
		{"credential wins over everything", true, true, true, StrategyModel, false},
		{"credential wins while signed out", false, true, false, StrategyModel, false},
		{"authenticated uses remote", true, false, true, StrategyRemote, false},
		{"authenticated never downgrades to placeholder", true, false, false, StrategyRemote, false},
		{"anonymous gets placeholder", false, false, true, StrategyPlaceholder, false},
		{"anonymous with placeholder disabled needs setup", false, false, false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Choose(tt.isAuthenticated, tt.hasCredential, tt.placeholderEnabled)
			if tt.wantSetup {
				require.Error(t, err)
				assert.ErrorAs(t, err, &ErrSetupRequired{})
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
