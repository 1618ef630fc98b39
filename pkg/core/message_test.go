package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "CONTINUE", OutcomeContinue.String())
	assert.Equal(t, "TERMINATE", OutcomeTerminate.String())
	assert.Equal(t, "UNKNOWN", Outcome(7).String())
}

func TestDecodeServerMessage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantCmd string
		wantErr bool
	}{
		{"command_only", `{"cmd":"games"}`, "games", false},
		{"with_message", `{"cmd":"exit","message":"bye"}`, "exit", false},
		{"with_data", `{"cmd":"invite","data":{"game_id":42}}`, "invite", false},
		{"not_json", `not json`, "", true},
		{"missing_cmd", `{"message":"hi"}`, "", true},
		{"empty_cmd", `{"cmd":""}`, "", true},
		{"array", `[1,2,3]`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeServerMessage([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, msg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, msg.Cmd)
		})
	}
}
