package yamlconfig

import "github.com/nucleus/dq-core/internal/blobstore"

// Execution engine classes.
const (
	SparkEngineClass  = "SparkDFExecutionEngine"
	PandasEngineClass = "PandasExecutionEngine"
)

// ConnectorKind groups connector classes by discovery behaviour.
type ConnectorKind int

const (
	KindRuntime ConnectorKind = iota
	KindInferred
	KindConfigured
)

func (k ConnectorKind) String() string {
	switch k {
	case KindRuntime:
		return "runtime"
	case KindInferred:
		return "inferred"
	case KindConfigured:
		return "configured"
	default:
		return "unknown"
	}
}

// ConnectorClass describes a data connector class_name.
type ConnectorClass struct {
	Name     string
	Kind     ConnectorKind
	Provider string // blobstore provider; empty for runtime connectors
}

var connectorClasses = map[string]ConnectorClass{
	"RuntimeDataConnector": {Name: "RuntimeDataConnector", Kind: KindRuntime},

	"InferredAssetAzureDataConnector":      {Name: "InferredAssetAzureDataConnector", Kind: KindInferred, Provider: blobstore.ProviderAzure},
	"InferredAssetS3DataConnector":         {Name: "InferredAssetS3DataConnector", Kind: KindInferred, Provider: blobstore.ProviderS3},
	"InferredAssetGCSDataConnector":        {Name: "InferredAssetGCSDataConnector", Kind: KindInferred, Provider: blobstore.ProviderGCS},
	"InferredAssetFilesystemDataConnector": {Name: "InferredAssetFilesystemDataConnector", Kind: KindInferred, Provider: blobstore.ProviderFile},

	"ConfiguredAssetAzureDataConnector":      {Name: "ConfiguredAssetAzureDataConnector", Kind: KindConfigured, Provider: blobstore.ProviderAzure},
	"ConfiguredAssetS3DataConnector":         {Name: "ConfiguredAssetS3DataConnector", Kind: KindConfigured, Provider: blobstore.ProviderS3},
	"ConfiguredAssetGCSDataConnector":        {Name: "ConfiguredAssetGCSDataConnector", Kind: KindConfigured, Provider: blobstore.ProviderGCS},
	"ConfiguredAssetFilesystemDataConnector": {Name: "ConfiguredAssetFilesystemDataConnector", Kind: KindConfigured, Provider: blobstore.ProviderFile},
}

// LookupConnectorClass resolves a connector class_name.
func LookupConnectorClass(className string) (ConnectorClass, bool) {
	c, ok := connectorClasses[className]
	return c, ok
}

// IsEngineClass reports whether className names a supported execution engine.
func IsEngineClass(className string) bool {
	return className == SparkEngineClass || className == PandasEngineClass
}
