package builder

import (
	"github.com/leapcode/keymanager/engines/storage/sqlite"
)

func init() {
	sqlite.Register()
}
