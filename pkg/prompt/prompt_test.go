package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleWithoutContext(t *testing.T) {
	msgs := Assemble("be helpful", "", nil, "hello")

	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleSystem, Content: "be helpful"}, msgs[0])
	assert.Equal(t, Message{Role: RoleUser, Content: "hello"}, msgs[1])
}

func TestAssembleWithContext(t *testing.T) {
	msgs := Assemble("be helpful", "[a.txt]: alpha", nil, "hello")

	require.Len(t, msgs, 2)
	system := msgs[0].Content
	assert.True(t, strings.HasPrefix(system, "be helpful\n\n=== DOCUMENT CONTEXT ===\n[a.txt]: alpha\n=== END ===\n\n"))
	assert.Contains(t, system, contextInstruction)
}

func TestAssembleKeepsLastFiveAcceptedTurns(t *testing.T) {
	var history []Turn
	for i := 0; i < 8; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		history = append(history, Turn{Role: role, Content: fmt.Sprintf("turn %d", i)})
		// noise that must be dropped before counting
		history = append(history, Turn{Role: "tool", Content: "ignored"})
	}

	msgs := Assemble("sys", "", history, "new")

	require.Len(t, msgs, 7)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	for i, m := range msgs[1:6] {
		assert.Equal(t, fmt.Sprintf("turn %d", i+3), m.Content)
	}
	assert.Equal(t, Message{Role: RoleUser, Content: "new"}, msgs[6])
}

func TestAssembleDropsEmptyTurns(t *testing.T) {
	msgs := Assemble("sys", "", []Turn{{Role: RoleUser}, {Role: RoleAssistant, Content: "ok"}}, "new")
	require.Len(t, msgs, 3)
	assert.Equal(t, "ok", msgs[1].Content)
}

func TestAssembleCountsEmptyTurnsInWindow(t *testing.T) {
	var history []Turn
	for i := 0; i < 6; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		content := fmt.Sprintf("t%d", i)
		if i == 5 {
			content = ""
		}
		history = append(history, Turn{Role: role, Content: content})
	}

	msgs := Assemble("sys", "", history, "new")

	require.Len(t, msgs, 6)
	for i, m := range msgs[1:5] {
		assert.Equal(t, fmt.Sprintf("t%d", i+1), m.Content)
	}
	assert.Equal(t, Message{Role: RoleUser, Content: "new"}, msgs[5])
}

func TestTurnAcceptsLegacyText(t *testing.T) {
	var turns []Turn
	err := json.Unmarshal([]byte(`[{"role":"user","text":"old"},{"role":"assistant","content":"new","text":"ignored"}]`), &turns)
	require.NoError(t, err)

	assert.Equal(t, []Turn{{Role: RoleUser, Content: "old"}, {Role: RoleAssistant, Content: "new"}}, turns)
}
