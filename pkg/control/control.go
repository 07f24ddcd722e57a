// Frontline Perception System
// Copyright (C) 2020-2025 TurbineOne LLC
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package control exposes catalog and detector operations to local tools
// over gRPC on a unix socket.
package control

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/TurbineOne/detection-archive/pkg/catalog"
	"github.com/TurbineOne/detection-archive/pkg/detector"
)

const (
	// SocketName is the file name of the socket under Config.SocketRoot.
	SocketName = "archiver.sock"
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "archive.v1.Control"

	lSocket = "socket"
	lMethod = "method"
)

// Config controls the control socket.
type Config struct { //nolint:govet // Don't care about alignment.
	Enabled       bool          `yaml:"enabled" json:"enabled" env:"ENABLED" doc:"Serve the control socket"`
	SocketRoot    string        `yaml:"socket_root" json:"socket_root" env:"SOCKET_ROOT" validate:"required_if=Enabled true" doc:"Directory for the control socket"`
	ProbeInterval time.Duration `yaml:"probe_interval" json:"probe_interval" env:"PROBE_INTERVAL" validate:"gt=0" doc:"How often storage health is checked"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Enabled:       true,
		SocketRoot:    "/tmp",
		ProbeInterval: 5 * time.Second, //nolint:mnd // Default.
	}
}

// Catalog lists assets.
type Catalog interface {
	Root() string
	List(ctx context.Context) ([]catalog.Entry, error)
}

// Detectors starts and stops detector processes.
type Detectors interface {
	Start(cameraID, source string) (detector.Info, error)
	Stop(cameraID string) error
	List() []detector.Info
}

// ControlServer is the server API of archive.v1.Control.
type ControlServer interface {
	ListCatalog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListDetectors(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	StartDetector(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	StopDetector(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Server implements ControlServer and the standard health service.
type Server struct {
	c         Config
	catalog   Catalog
	detectors Detectors
	urls      catalog.URLs
	health    *health.Server
	log       zerolog.Logger
}

var _ ControlServer = (*Server)(nil)

// New returns a Server. Serve must be called to listen.
func New(c *Config, cat Catalog, det Detectors, urls catalog.URLs, logger *zerolog.Logger) *Server {
	return &Server{
		c:         *c,
		catalog:   cat,
		detectors: det,
		urls:      urls,
		health:    health.NewServer(),
		log:       logger.With().Str("pkg", "control").Logger(),
	}
}

// Register installs the control and health services on gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&ControlServiceDesc, s)
	healthpb.RegisterHealthServer(gs, s.health)
}

// SocketPath is where Serve listens.
func (s *Server) SocketPath() string {
	return filepath.Join(s.c.SocketRoot, SocketName)
}

// Serve listens on the unix socket until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	socket := s.SocketPath()
	if err := os.RemoveAll(socket); err != nil {
		s.log.Error().Err(err).Str(lSocket, socket).Msg("failed to remove existing socket")
	}

	l, err := net.Listen("unix", socket)
	if err != nil {
		return err //nolint:wrapcheck // Supervisor logs it.
	}

	gs := grpc.NewServer()
	s.Register(gs)

	go s.probe(ctx)

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		gs.GracefulStop()
	}()

	s.log.Info().Str(lSocket, socket).Msg("starting control socket")

	if err := gs.Serve(l); err != nil {
		return err //nolint:wrapcheck // Supervisor logs it.
	}

	return ctx.Err()
}

// probe keeps the health status in line with storage accessibility.
func (s *Server) probe(ctx context.Context) {
	ticker := time.NewTicker(s.c.ProbeInterval)
	defer ticker.Stop()

	for {
		s.CheckStorage()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CheckStorage updates the health status from the storage root and returns it.
func (s *Server) CheckStorage() healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING

	info, err := os.Stat(s.catalog.Root())
	if err != nil || !info.IsDir() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)

	return st
}

// ListCatalog takes optional kind, threatLevel, minThreat, since and limit
// fields and returns {"entries": [...]} in catalog order.
func (s *Server) ListCatalog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q := url.Values{}

	for _, key := range []string{"kind", "threatLevel", "minThreat", "since", "limit"} {
		for _, v := range stringValues(req, key) {
			q.Add(key, v)
		}
	}

	filter, err := catalog.ParseFilter(q)
	if err != nil {
		return nil, toStatus(err)
	}

	entries, err := s.catalog.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	entries = filter.Apply(entries)

	views := make([]catalog.View, 0, len(entries))
	for i := range entries {
		views = append(views, catalog.NewView(&entries[i], s.urls))
	}

	return toStruct(map[string]interface{}{"entries": views})
}

// ListDetectors returns {"detectors": [...]}.
func (s *Server) ListDetectors(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]interface{}{"detectors": s.detectors.List()})
}

// StartDetector takes camId and source.
func (s *Server) StartDetector(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	info, err := s.detectors.Start(stringField(req, "camId"), stringField(req, "source"))
	if err != nil {
		return nil, toStatus(err)
	}

	return toStruct(info)
}

// StopDetector takes camId.
func (s *Server) StopDetector(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	camID := stringField(req, "camId")
	if err := s.detectors.Stop(camID); err != nil {
		return nil, toStatus(err)
	}

	return toStruct(map[string]interface{}{"camId": camID, "stopped": true})
}

func stringField(req *structpb.Struct, key string) string {
	if v, ok := req.GetFields()[key]; ok {
		return v.GetStringValue()
	}

	return ""
}

// stringValues reads key as a string, a number or a list of strings.
func stringValues(req *structpb.Struct, key string) []string {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil
	}

	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return []string{k.StringValue}
	case *structpb.Value_NumberValue:
		return []string{strconv.FormatFloat(k.NumberValue, 'f', -1, 64)}
	case *structpb.Value_ListValue:
		out := make([]string, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			out = append(out, item.GetStringValue())
		}

		return out
	}

	return nil
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(b); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return out, nil
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	var (
		invalidReq *detector.InvalidRequestError
		notRunning *detector.NotRunningError
		limit      *detector.LimitError
		notFound   *catalog.DirectoryNotFoundError
		badFilter  *catalog.InvalidFilterError
		code       codes.Code
	)

	switch {
	case errors.As(err, &invalidReq), errors.As(err, &badFilter):
		code = codes.InvalidArgument
	case errors.As(err, &notRunning):
		code = codes.NotFound
	case errors.As(err, &limit):
		code = codes.ResourceExhausted
	case errors.As(err, &notFound):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		code = codes.Internal
	}

	return status.Error(code, err.Error())
}
