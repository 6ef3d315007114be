package reconciler

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
)

// Pending is the handle of an issued listing request
type Pending struct {
	descriptor query.Descriptor
	done       chan struct{}

	page   *models.ResultPage
	err    error
	stale  bool
	shared bool
}

func newPending(d query.Descriptor, ch <-chan singleflight.Result, settle func(query.Descriptor, *models.ResultPage, error) bool) *Pending {
	p := &Pending{
		descriptor: d,
		done:       make(chan struct{}),
	}

	go func() {
		res := <-ch
		page, _ := res.Val.(*models.ResultPage)

		p.shared = res.Shared
		p.stale = settle(d, page, res.Err)
		if !p.stale {
			p.page = page
			p.err = res.Err
		}
		close(p.done)
	}()

	return p
}

// Descriptor is the query this request answers
func (p *Pending) Descriptor() query.Descriptor {
	return p.descriptor
}

// Done is closed once the request has settled
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the request settles or ctx ends. A response that arrived
// after the live query moved on yields (nil, nil) and Stale reports true.
func (p *Pending) Wait(ctx context.Context) (*models.ResultPage, error) {
	select {
	case <-p.done:
		return p.page, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stale reports whether the response was discarded. Only meaningful after Done.
func (p *Pending) Stale() bool {
	<-p.done
	return p.stale
}

// Shared reports whether this handle joined a request issued by an earlier
// Fetch. Only meaningful after Done.
func (p *Pending) Shared() bool {
	<-p.done
	return p.shared
}
