package ctrlbase

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/mitchellh/mapstructure"
)

const (
	maxJSONBody      = 1 << 20
	MaxMultipartBody = 32 << 20
)

// BodyFields reads a json object, urlencoded form, or multipart form body into
// a map. form fields take their first value
func BodyFields(r *http.Request) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var fields map[string]any
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&fields); err != nil {
			return nil, fmt.Errorf("decode json body: %w", err)
		}
		if fields == nil {
			fields = map[string]any{}
		}
		return fields, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(MaxMultipartBody); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
	}
	fields := map[string]any{}
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return fields, nil
}

// DecodeBody decodes the request body into out using out's mapstructure tags
func DecodeBody(r *http.Request, out any) error {
	fields, err := BodyFields(r)
	if err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(fields); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
