package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/go-viper/mapstructure/v2"
)

// HTTPSpec describes a tool that calls a JSON HTTP endpoint. It is usually
// decoded from the free-form definition stored with a team skill.
type HTTPSpec struct {
	Name        string            `mapstructure:"name" validate:"required"`
	Description string            `mapstructure:"description"`
	Method      string            `mapstructure:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	URL         string            `mapstructure:"url" validate:"required,url"`
	Headers     map[string]string `mapstructure:"headers"`
	Parameters  map[string]any    `mapstructure:"parameters"`
	Timeout     time.Duration     `mapstructure:"timeout"`
}

var specValidator = validator.New()

// DecodeHTTPSpec decodes and validates a raw definition.
func DecodeHTTPSpec(raw map[string]any) (HTTPSpec, error) {
	var spec HTTPSpec

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &spec,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return HTTPSpec{}, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return HTTPSpec{}, fmt.Errorf("failed to decode tool definition: %w", err)
	}

	spec.Method = strings.ToUpper(spec.Method)
	if spec.Method == "" {
		spec.Method = http.MethodPost
	}

	if err := specValidator.Struct(spec); err != nil {
		return HTTPSpec{}, fmt.Errorf("invalid tool definition %q: %w", spec.Name, err)
	}

	return spec, nil
}

// DefinitionTool executes an HTTPSpec. GET and DELETE calls send the
// arguments as query parameters, everything else as a JSON body.
type DefinitionTool struct {
	spec   HTTPSpec
	name   string
	client *resty.Client
}

// NewDefinitionTool builds a tool from a raw definition.
func NewDefinitionTool(raw map[string]any) (*DefinitionTool, error) {
	spec, err := DecodeHTTPSpec(raw)
	if err != nil {
		return nil, err
	}
	return NewHTTPTool(spec, nil), nil
}

// NewHTTPTool builds a tool from a decoded spec. A nil client gets a default one.
func NewHTTPTool(spec HTTPSpec, client *resty.Client) *DefinitionTool {
	if client == nil {
		client = resty.New()
	}
	return &DefinitionTool{spec: spec, name: SanitizeName(spec.Name), client: client}
}

func (t *DefinitionTool) Name() string        { return t.name }
func (t *DefinitionTool) Description() string { return t.spec.Description }

func (t *DefinitionTool) Parameters() map[string]any {
	if t.spec.Parameters == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return t.spec.Parameters
}

// Call performs the HTTP request. Non-2xx responses become HTTP_ERROR tool errors.
func (t *DefinitionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if t.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.spec.Timeout)
		defer cancel()
	}

	req := t.client.R().
		SetContext(ctx).
		SetHeaders(t.spec.Headers).
		SetHeader("Accept", "application/json")

	switch t.spec.Method {
	case http.MethodGet, http.MethodDelete:
		query := make(map[string]string, len(args))
		for k, v := range args {
			if v == nil {
				continue
			}
			query[k] = fmt.Sprint(v)
		}
		req.SetQueryParams(query)
	default:
		req.SetHeader("Content-Type", "application/json").SetBody(args)
	}

	resp, err := req.Execute(t.spec.Method, t.spec.URL)
	if err != nil {
		return nil, NewToolError(t.name, err.Error(), CodeHTTP)
	}

	if resp.IsError() {
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("%s %s returned %d", t.spec.Method, t.spec.URL, resp.StatusCode()),
			Code:    CodeHTTP,
			Details: resp.String(),
		}
	}

	body := resp.Body()
	var decoded any
	if len(body) > 0 && json.Unmarshal(body, &decoded) == nil {
		return decoded, nil
	}

	return string(body), nil
}
