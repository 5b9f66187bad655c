package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/beacon"
	"github.com/and161185/phishtrack/internal/errs"
	"github.com/and161185/phishtrack/internal/metrics"
	"github.com/and161185/phishtrack/internal/model"
	"github.com/and161185/phishtrack/internal/repository"
)

// BeaconService records deaddrop call-ins.
type BeaconService struct {
	repo repository.BeaconRepository
	log  *zap.Logger
}

// NewBeaconService constructs a BeaconService.
func NewBeaconService(repo repository.BeaconRepository, log *zap.Logger) *BeaconService {
	return &BeaconService{repo: repo, log: log}
}

// Record decodes token and upserts the connection. Malformed or incomplete
// tokens and unknown deployments are logged and dropped with a nil error;
// only store failures are returned.
func (s *BeaconService) Record(ctx context.Context, token, clientIP string) error {
	if token == "" {
		metrics.Beacons.WithLabelValues("malformed").Inc()
		return nil
	}
	rec, err := beacon.Decode(token)
	if err == nil && !rec.Complete() {
		err = errs.ErrIncompleteRecord
	}
	switch {
	case errors.Is(err, errs.ErrIncompleteRecord):
		metrics.Beacons.WithLabelValues("incomplete").Inc()
		s.log.Warn("incomplete deaddrop record", zap.String("client_ip", clientIP))
		return nil
	case err != nil:
		metrics.Beacons.WithLabelValues("malformed").Inc()
		s.log.Warn("malformed deaddrop token", zap.String("client_ip", clientIP), zap.Error(err))
		return nil
	}

	campaignID, err := s.repo.DeploymentCampaign(ctx, rec.DeploymentID)
	if errors.Is(err, errs.ErrNotFound) {
		metrics.Beacons.WithLabelValues("unknown_deployment").Inc()
		s.log.Warn("unknown deaddrop deployment",
			zap.String("deployment_id", rec.DeploymentID),
			zap.String("client_ip", clientIP),
		)
		return nil
	}
	if err != nil {
		return err
	}

	created, err := s.repo.Upsert(ctx, &model.BeaconConnection{
		DeploymentID:     rec.DeploymentID,
		CampaignID:       campaignID,
		VisitorIP:        clientIP,
		LocalUsername:    rec.LocalUsername,
		LocalHostname:    rec.LocalHostname,
		LocalIPAddresses: rec.LocalIPAddresses,
	})
	if err != nil {
		return err
	}
	result := "updated"
	if created {
		result = "created"
	}
	metrics.Beacons.WithLabelValues(result).Inc()
	s.log.Info("deaddrop call-in",
		zap.String("deployment_id", rec.DeploymentID),
		zap.Int64("campaign_id", campaignID),
		zap.String("local_username", rec.LocalUsername),
		zap.String("local_hostname", rec.LocalHostname),
		zap.String("result", result),
	)
	return nil
}
