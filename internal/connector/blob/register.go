package blob

import (
	"fmt"

	"github.com/nucleus/dq-core/internal/connector"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

var classNames = []string{
	"InferredAssetAzureDataConnector",
	"InferredAssetS3DataConnector",
	"InferredAssetGCSDataConnector",
	"InferredAssetFilesystemDataConnector",
	"ConfiguredAssetAzureDataConnector",
	"ConfiguredAssetS3DataConnector",
	"ConfiguredAssetGCSDataConnector",
	"ConfiguredAssetFilesystemDataConnector",
}

func init() {
	for _, name := range classNames {
		class, ok := yamlconfig.LookupConnectorClass(name)
		if !ok {
			panic(fmt.Sprintf("blob connector class not declared: %s", name))
		}
		connector.Register(name, func(cfg *yamlconfig.DataConnectorConfig, opts connector.Options) (connector.DataConnector, error) {
			if class.Kind == yamlconfig.KindInferred {
				return NewInferred(cfg, class, opts)
			}
			return NewConfigured(cfg, class, opts)
		})
	}
}
