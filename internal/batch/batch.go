package batch

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nucleus/dq-core/internal/blobstore"
	"github.com/nucleus/dq-core/internal/frame"
)

// Definition identifies one concrete batch within a data asset.
type Definition struct {
	DatasourceName    string            `json:"datasource_name"`
	DataConnectorName string            `json:"data_connector_name"`
	DataAssetName     string            `json:"data_asset_name"`
	BatchIdentifiers  map[string]string `json:"batch_identifiers"`

	// DataReference is the object key (or runtime label) backing the batch.
	DataReference string `json:"-"`
}

// ID is the md5 hex digest of the definition's canonical JSON form.
// encoding/json sorts map keys, so equal definitions share an ID.
func (d *Definition) ID() string {
	canonical, _ := json.Marshal(d)
	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:])
}

// Location names an object in blob storage.
type Location struct {
	Provider string
	Bucket   string
	Key      string

	// Options are the connector's storage options, used when the engine has
	// none of its own for the provider.
	Options blobstore.Config
}

// URI renders the location as provider://bucket/key.
func (l *Location) URI() string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s://%s/%s", l.Provider, l.Bucket, l.Key)
}

// Spec tells the execution engine how to materialize a batch.
type Spec struct {
	Location      *Location
	Path          string
	BatchData     *frame.Frame
	ReaderMethod  string
	ReaderOptions map[string]any
	Sampling      *Method
	Splitting     *Method
}

// Method is a named sampling or splitting method with its kwargs.
type Method struct {
	Name   string
	Kwargs map[string]any
}

// Markers record when a batch was materialized.
type Markers struct {
	IngestionTime time.Time `json:"ingestion_time"`
}

// Batch is a materialized slice of data ready for validation.
type Batch struct {
	ID         string
	Definition *Definition
	Spec       *Spec
	Markers    Markers
	Data       *frame.Frame
}

// Passthrough is the parsed form of batch_spec_passthrough.
type Passthrough struct {
	ReaderMethod  string
	ReaderOptions map[string]any
	Sampling      *Method
	Splitting     *Method
}

// ParsePassthrough reads the recognised keys of a batch_spec_passthrough map.
func ParsePassthrough(raw map[string]any) (*Passthrough, error) {
	p := &Passthrough{ReaderOptions: map[string]any{}}
	if raw == nil {
		return p, nil
	}
	for key, value := range raw {
		switch key {
		case "reader_method":
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("reader_method must be a string, got %T", value)
			}
			p.ReaderMethod = s
		case "reader_options":
			opts, err := asMap(value)
			if err != nil {
				return nil, fmt.Errorf("reader_options: %w", err)
			}
			for k, v := range opts {
				p.ReaderOptions[k] = v
			}
		case "sampling_method":
			p.Sampling = ensureMethod(p.Sampling)
			p.Sampling.Name = fmt.Sprint(value)
		case "sampling_kwargs":
			kwargs, err := asMap(value)
			if err != nil {
				return nil, fmt.Errorf("sampling_kwargs: %w", err)
			}
			p.Sampling = ensureMethod(p.Sampling)
			p.Sampling.Kwargs = kwargs
		case "splitter_method":
			p.Splitting = ensureMethod(p.Splitting)
			p.Splitting.Name = fmt.Sprint(value)
		case "splitter_kwargs":
			kwargs, err := asMap(value)
			if err != nil {
				return nil, fmt.Errorf("splitter_kwargs: %w", err)
			}
			p.Splitting = ensureMethod(p.Splitting)
			p.Splitting.Kwargs = kwargs
		default:
			return nil, fmt.Errorf("unsupported batch_spec_passthrough key %q", key)
		}
	}
	return p, nil
}

// Merge overlays over on top of p and returns a new Passthrough. Reader options are
// merged key by key; methods are replaced.
func (p *Passthrough) Merge(over *Passthrough) *Passthrough {
	out := &Passthrough{ReaderOptions: map[string]any{}}
	for _, src := range []*Passthrough{p, over} {
		if src == nil {
			continue
		}
		if src.ReaderMethod != "" {
			out.ReaderMethod = src.ReaderMethod
		}
		for k, v := range src.ReaderOptions {
			out.ReaderOptions[k] = v
		}
		if src.Sampling != nil {
			out.Sampling = src.Sampling
		}
		if src.Splitting != nil {
			out.Splitting = src.Splitting
		}
	}
	return out
}

func ensureMethod(m *Method) *Method {
	if m == nil {
		return &Method{Kwargs: map[string]any{}}
	}
	return m
}

func asMap(value any) (map[string]any, error) {
	switch t := value.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return t, nil
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = v
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[fmt.Sprint(k)] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", value)
	}
}
