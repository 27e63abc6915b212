package page

import (
	"github.com/kailas-cloud/listingpage/internal/domain/view"
	"github.com/kailas-cloud/listingpage/internal/usecase/fetch"
)

// Executor sends named backend queries.
type Executor = fetch.Executor

// Subscriber receives every published view. It must not block and must not
// call Page mutators synchronously.
type Subscriber func(view.View)
