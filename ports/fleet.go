package ports

import (
	"context"
	"encoding/json"

	"github.com/layer-3/bustrack/core"
)

// Fleet forwards bus, location and driver requests to the serverless functions that own them.
// bearer is the caller's access token, forwarded verbatim.
type Fleet interface {
	ListBuses(ctx context.Context, bearer string) (json.RawMessage, error)
	CreateBus(ctx context.Context, bearer string, bus json.RawMessage) (*core.Upstream, error)
	GetBusForDriver(ctx context.Context, bearer, email string) (*core.Upstream, error)
	StoreLocation(ctx context.Context, bearer string, location core.Location) (*core.Upstream, error)
	ListLocations(ctx context.Context, bearer string) ([]core.BusLocation, error)
	CreateUser(ctx context.Context, bearer string, user json.RawMessage) (*core.Upstream, error)
}
