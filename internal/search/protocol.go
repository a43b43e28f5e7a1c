package search

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/kayz/kidsearch/internal/config"
)

// Query is what a protocol receives for one call.
type Query struct {
	Text  string
	Lang  string
	Limit int
}

// Protocol talks to one kind of secondary backend.
type Protocol interface {
	WebSearch(ctx context.Context, q Query) ([]Result, error)
}

// ImageSearcher is implemented by protocols that can return images.
type ImageSearcher interface {
	ImageSearch(ctx context.Context, q Query) ([]Result, error)
}

type ProtocolFactory func(cfg config.SourceConfig, client *http.Client) (Protocol, error)

var (
	protocolsMu sync.RWMutex
	protocols   = map[string]ProtocolFactory{}
)

func init() {
	RegisterProtocol(config.TypeMediaWiki, NewMediaWikiProtocol)
	RegisterProtocol(config.TypeMeiliSearch, NewMeiliSearchProtocol)
	RegisterProtocol(config.TypeCustom, NewCustomProtocol)
}

// RegisterProtocol makes a source type available to the registry.
func RegisterProtocol(sourceType string, factory ProtocolFactory) {
	protocolsMu.Lock()
	defer protocolsMu.Unlock()
	protocols[sourceType] = factory
}

func ProtocolTypes() []string {
	protocolsMu.RLock()
	defer protocolsMu.RUnlock()

	types := make([]string, 0, len(protocols))
	for t := range protocols {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func newProtocol(cfg config.SourceConfig, client *http.Client) (Protocol, error) {
	protocolsMu.RLock()
	factory, ok := protocols[cfg.Type]
	protocolsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown source type %q (known: %s)", cfg.Type, strings.Join(ProtocolTypes(), ", "))
	}
	return factory(cfg, client)
}

// decodeOptions fills out from a source's free-form options map.
func decodeOptions(opts map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(opts); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func expandLang(s, lang string) string {
	return strings.ReplaceAll(s, "{lang}", lang)
}
