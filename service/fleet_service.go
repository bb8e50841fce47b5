package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/layer-3/bustrack/adapters/events"
	"github.com/layer-3/bustrack/core"
	"github.com/layer-3/bustrack/ports"
)

// FleetService validates fleet requests and forwards them with the caller's token
type FleetService struct {
	fleet    ports.Fleet
	eventPub ports.EventPublisher
	logger   *zap.Logger
}

// NewFleetService creates a new fleet service
func NewFleetService(fleet ports.Fleet, eventPub ports.EventPublisher, logger *zap.Logger) *FleetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if eventPub == nil {
		eventPub = events.NopPublisher{}
	}
	return &FleetService{
		fleet:    fleet,
		eventPub: eventPub,
		logger:   logger.Named("fleet"),
	}
}

func (s *FleetService) ListBuses(ctx context.Context, bearer string) (json.RawMessage, error) {
	buses, err := s.fleet.ListBuses(ctx, bearer)
	if err != nil {
		s.logger.Info("failed to list buses", zap.Error(err))
		return nil, err
	}
	return buses, nil
}

func (s *FleetService) AddBus(ctx context.Context, bearer string, bus json.RawMessage) (*core.Upstream, error) {
	if !isObject(bus) {
		return nil, core.Invalid("Bus details are required.")
	}

	up, err := s.fleet.CreateBus(ctx, bearer, bus)
	if err != nil {
		s.logger.Info("failed to add bus", zap.Error(err))
		return nil, err
	}
	return up, nil
}

func (s *FleetService) GetBusForDriver(ctx context.Context, bearer, email string) (*core.Upstream, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, core.Invalid("Email is required.")
	}

	up, err := s.fleet.GetBusForDriver(ctx, bearer, email)
	if err != nil {
		s.logger.Info("failed to get bus for driver", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return up, nil
}

// StoreLocation validates a position report, forwards it and announces it on the location topic
func (s *FleetService) StoreLocation(ctx context.Context, bearer string, location core.Location) (*core.Upstream, error) {
	if err := location.Validate(); err != nil {
		return nil, err
	}

	up, err := s.fleet.StoreLocation(ctx, bearer, location)
	if err != nil {
		s.logger.Info("failed to store location", zap.Int64("bus_id", location.BusID), zap.Error(err))
		return nil, err
	}

	if err := s.eventPub.PublishLocation(ctx, location); err != nil {
		s.logger.Warn("failed to publish location", zap.Int64("bus_id", location.BusID), zap.Error(err))
	}
	return up, nil
}

func (s *FleetService) ListLocations(ctx context.Context, bearer string) ([]core.BusLocation, error) {
	locations, err := s.fleet.ListLocations(ctx, bearer)
	if err != nil {
		s.logger.Info("failed to list locations", zap.Error(err))
		return nil, err
	}
	return locations, nil
}

func (s *FleetService) AddUser(ctx context.Context, bearer string, user json.RawMessage) (*core.Upstream, error) {
	if !isObject(user) {
		return nil, core.Invalid("User details are required.")
	}

	up, err := s.fleet.CreateUser(ctx, bearer, user)
	if err != nil {
		s.logger.Info("failed to add user", zap.Error(err))
		return nil, err
	}
	return up, nil
}

func isObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && len(obj) > 0
}
