package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	logx "signedkb/pkg/logx"
)

// sdNotify reports state to systemd. Outside a notify-type unit it is a
// no-op.
func sdNotify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Debug("systemd notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("systemd notified", logx.String("state", state))
	}
}
