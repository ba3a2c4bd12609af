package usecases

import (
	"context"
	"strings"

	"zapdesk/internal/interfaces"
)

// Composer builds outbound reply text, appending the option list when the
// resolved node has children.
type Composer struct {
	Triggers interfaces.TriggerStore
}

// Compose returns responseText plus the submenu under nodeID. nodeID nil
// lists the root menu. When the level has no children the text is returned
// untouched.
func (c *Composer) Compose(ctx context.Context, instance, responseText string, nodeID *int64) (string, error) {
	children, err := c.Triggers.ListChildren(ctx, instance, nodeID)
	if err != nil {
		return responseText, err
	}
	if len(children) == 0 {
		return responseText, nil
	}

	var sb strings.Builder
	sb.WriteString(responseText)
	sb.WriteString("\n\n👇 *Opções:*")
	for _, child := range children {
		label := child.MenuLabel
		if label == "" {
			label = child.Keyword
		}
		sb.WriteString("\n*")
		sb.WriteString(child.Keyword)
		sb.WriteString("* - ")
		sb.WriteString(label)
	}
	return sb.String(), nil
}
