package builder

import (
	"github.com/leapcode/keymanager/engines/storage/postgres"
)

func init() {
	postgres.Register()
}
