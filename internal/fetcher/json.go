package fetcher

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hypolab/internal/model"
)

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Expects input in the form [{...},{...}].
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}

type updatesEnvelope struct {
	Updates *[]model.RawUpdate `json:"updates"`
}

// DecodeUpdates reads bulk updates from either a bare JSON array or an
// {"updates": [...]} envelope.
func DecodeUpdates(ctx context.Context, r io.Reader) ([]model.RawUpdate, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, eris.Wrap(err, "json: empty input")
	}

	switch first {
	case '[':
		outCh, errCh := DecodeJSONArray[model.RawUpdate](ctx, br)
		var updates []model.RawUpdate
		for u := range outCh {
			updates = append(updates, u)
		}
		if err := <-errCh; err != nil {
			return nil, err
		}
		return updates, nil
	case '{':
		env, err := DecodeJSONObject[updatesEnvelope](br)
		if err != nil {
			return nil, err
		}
		if env.Updates == nil {
			return nil, eris.New("json: missing updates array")
		}
		return *env.Updates, nil
	default:
		return nil, eris.Errorf("json: expected array or object, got %q", first)
	}
}

func peekNonSpace(br *bufio.Reader) (rune, error) {
	for {
		r, _, err := br.ReadRune()
		if err != nil {
			return 0, err
		}
		if r == '\ufeff' || unicode.IsSpace(r) {
			continue
		}
		return r, br.UnreadRune()
	}
}
