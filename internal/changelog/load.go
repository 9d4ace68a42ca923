package changelog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed feed.schema.json
var feedSchema []byte

const feedSchemaURL = "https://manual-mcp.local/changelog-feed.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// ErrInvalidFeed is returned when a feed does not match the feed schema.
var ErrInvalidFeed = errors.New("invalid changelog feed")

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var doc any
		if err := json.Unmarshal(feedSchema, &doc); err != nil {
			compileErr = fmt.Errorf("failed to parse feed schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(feedSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("failed to add feed schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(feedSchemaURL)
	})
	return compiled, compileErr
}

// Load reads and validates a feed file in YAML or JSON.
func Load(path string) (*Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read changelog feed: %w", err)
	}
	feed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return feed, nil
}

// Parse decodes a YAML or JSON feed and validates it against the feed schema.
func Parse(data []byte) (*Feed, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode changelog feed: %w", err)
	}

	// Round trip through JSON so the validator sees plain JSON values.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert changelog feed: %w", err)
	}
	var instance any
	if err := json.Unmarshal(buf, &instance); err != nil {
		return nil, fmt.Errorf("failed to convert changelog feed: %w", err)
	}

	sch, err := schema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFeed, describe(err))
	}

	var feed Feed
	if err := yaml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("failed to decode changelog feed: %w", err)
	}
	return &feed, nil
}

// describe flattens a validation error into "path: message" lines.
func describe(err error) string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	printer := message.NewPrinter(language.English)
	var lines []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			path := "$"
			if len(e.InstanceLocation) > 0 {
				path = "$." + strings.Join(e.InstanceLocation, ".")
			}
			lines = append(lines, fmt.Sprintf("%s: %s", path, e.ErrorKind.LocalizedString(printer)))
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return strings.Join(lines, "; ")
}
