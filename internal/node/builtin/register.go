package builtin

import (
	"fmt"

	"github.com/flowforge/workflow/internal/executor/javascript"
	"github.com/flowforge/workflow/internal/node"
)

// RegisterAll wires every builtin handler into registry. jsEngine is
// injected so callers control its resource limits and VM pool size rather
// than each node type constructing its own.
func RegisterAll(registry *node.Registry, jsEngine *javascript.Engine) error {
	handlers := []node.Handler{
		NewMock(),
		NewWebhookTrigger(),
		NewScheduleTrigger(),
		NewHTTPRequest(),
		NewTransform(),
		NewCode(jsEngine),
		NewCondition(),
		NewSwitch(),
		NewMerge(),
		NewLoop(),
		NewSplit(),
		NewRetry(),
		NewDelay(),
		NewPostgresQuery(),
		NewMySQLQuery(),
		NewMongoQuery(),
		NewSlackMessage(),
		NewS3Object(),
		NewBedrockInvoke(),
	}

	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return fmt.Errorf("registering %s: %w", h.TypeName(), err)
		}
	}
	return nil
}
