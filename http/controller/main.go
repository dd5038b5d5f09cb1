package controller

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/tnqbao/gau-share-service/config"
	"github.com/tnqbao/gau-share-service/infra"
	"github.com/tnqbao/gau-share-service/repository"
	"github.com/tnqbao/gau-share-service/service"
)

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
	Policy     service.Policy
	Upload     *service.UploadService
	Redeem     *service.RedeemService
	Stats      *service.StatsService

	trustedProxies []netip.Prefix
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}

	policy := service.NewPolicy(config.EnvConfig)
	proxies, err := parseTrustedProxies(config.EnvConfig.TrustedProxies)
	if err != nil {
		panic(err)
	}

	return &Controller{
		Config:     config,
		Infra:      infra,
		Repository: repo,
		Policy:     policy,
		Upload: service.NewUploadService(policy, repo.FileEntryRepo, repo.BulkBatchRepo,
			infra.Blob, infra.QRCode, infra.Logger, infra.Metrics),
		Redeem: service.NewRedeemService(repo.FileEntryRepo, repo.BulkBatchRepo,
			infra.Blob, infra.QRCode, infra.Logger, infra.Metrics),
		Stats:          service.NewStatsService(repo.FileEntryRepo, repo.BulkBatchRepo),
		trustedProxies: proxies,
	}
}

func parseTrustedProxies(raw []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(raw))
	for _, entry := range raw {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
