package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Command
		wantErr error
	}{
		{
			name:  "join",
			frame: `{"type":"join","userId":"a@x.com","name":"Ann","plan":"pro","avatar":"a.png"}`,
			want:  JoinCommand{UserID: "a@x.com", Name: "Ann", Plan: PlanPro, Avatar: "a.png"},
		},
		{
			name:  "message",
			frame: `{"type":"message","text":"hello"}`,
			want:  SendMessageCommand{Text: "hello"},
		},
		{
			name:  "direct message",
			frame: `{"type":"dm","toId":"B","text":"hi","fromName":"Ann","fromPlan":"elite"}`,
			want:  DirectMessageCommand{ToID: "B", Text: "hi", FromName: "Ann", FromPlan: PlanElite},
		},
		{
			name:  "dm history",
			frame: `{"type":"get_dm_history","withId":"B"}`,
			want:  DMHistoryCommand{WithID: "B"},
		},
		{
			name:  "typing",
			frame: `{"type":"typing","name":"Ann","isTyping":true}`,
			want:  TypingCommand{Name: "Ann", IsTyping: true},
		},
		{
			name:  "dm typing",
			frame: `{"type":"dm_typing","toId":"B","isTyping":false}`,
			want:  DMTypingCommand{ToID: "B"},
		},
		{
			name:  "online users ignores extra fields",
			frame: `{"type":"get_online_users","extra":1}`,
			want:  OnlineUsersCommand{},
		},
		{
			name:  "mark read",
			frame: `{"type":"mark_dm_read","withId":"B"}`,
			want:  MarkDMReadCommand{WithID: "B"},
		},
		{
			name:    "bad json",
			frame:   `{not json`,
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "not an object",
			frame:   `"join"`,
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "missing type",
			frame:   `{"text":"hello"}`,
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "unknown type",
			frame:   `{"type":"bogus"}`,
			wantErr: ErrUnknownCommand,
		},
		{
			name:    "type is not a string",
			frame:   `{"type":7}`,
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "text is not a string",
			frame:   `{"type":"message","text":42}`,
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "isTyping is not a bool",
			frame:   `{"type":"typing","isTyping":"yes"}`,
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "toId is an object",
			frame:   `{"type":"dm","toId":{"id":"B"},"text":"hi"}`,
			wantErr: ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.frame))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, CommandType(tt.want), CommandType(got))
		})
	}
}
