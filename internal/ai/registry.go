package ai

import (
	"fmt"
	"strings"
)

// Well-known model selectors accepted from clients.
const (
	ModelChat          = "chat-model"
	ModelChatReasoning = "chat-model-reasoning"
	ModelTitle         = "title-model"
)

// Registry maps model selectors to provider handles. It is built once at
// process start and read-only afterwards; handlers receive it explicitly
// instead of reaching for process-global provider state.
type Registry struct {
	models map[string]Provider
}

func NewRegistry(models map[string]Provider) *Registry {
	cp := make(map[string]Provider, len(models))
	for name, p := range models {
		cp[strings.ToLower(strings.TrimSpace(name))] = p
	}
	return &Registry{models: cp}
}

func (r *Registry) LanguageModel(name string) (Provider, error) {
	p, ok := r.models[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown chat model: %s", name)
	}
	return p, nil
}

// Has reports whether a selector is registered; used by request validation.
func (r *Registry) Has(name string) bool {
	_, ok := r.models[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
