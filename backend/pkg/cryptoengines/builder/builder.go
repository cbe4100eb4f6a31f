package builder

import (
	"fmt"

	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/engines/cryptoengines"
	"github.com/leapcode/keymanager/engines/crypto/openpgp"
	log "github.com/sirupsen/logrus"
)

func BuildCryptoEngine(logger *log.Entry, conf config.CryptoEngine) (cryptoengines.CryptoEngine, error) {
	provider := conf.Provider
	if provider == "" {
		provider = config.OpenPGPProvider
	}

	builder := cryptoengines.GetEngineBuilder(provider)
	if builder == nil {
		return nil, fmt.Errorf("no crypto engine of type %s", provider)
	}
	return builder(logger, conf)
}

func init() {
	openpgp.Register()
}
