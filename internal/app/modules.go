package app

import (
	"github.com/vk/pagecost/internal/registry"
	"github.com/vk/pagecost/modules/removable"
	"github.com/vk/pagecost/modules/textcompression"
)

// coreModules is the definitive list of audit modules compiled into the
// pagecost binary. The standard page graph artifacts are registered by
// NewApp itself since they depend on the loaded network model.
var coreModules = []registry.Module{
	&textcompression.Module{},
	&removable.Module{},
}
