package monitor

import (
	"fmt"

	"github.com/genricoloni/nowplaying/internal/config"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// NewProvider builds the provider selected in the configuration
func NewProvider(logger *zap.Logger, cfg *config.AppConfig, fs afero.Fs) (domain.Provider, error) {
	switch cfg.Provider {
	case config.ProviderMPRIS:
		return NewMprisProvider(logger.Named("mpris"), cfg.MprisPlayer), nil
	case config.ProviderMPD:
		return NewMPDProvider(logger.Named("mpd"), fs, cfg.MPDAddress, cfg.MPDPassword, cfg.MPDMusicDir), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
