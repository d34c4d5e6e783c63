package hardware

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/markusressel/cool2go/internal/util"
)

const DefaultCmdTimeout = 2 * time.Second

// CmdChannel sets duties by running an executable, e.g. the liquidctl CLI.
// In Args, "%d" is replaced by the duty and "%s" by the channel name.
type CmdChannel struct {
	Exec    string
	Args    []string
	Timeout time.Duration
}

func NewCmdChannel(exec string, args []string) *CmdChannel {
	return &CmdChannel{
		Exec:    exec,
		Args:    args,
		Timeout: DefaultCmdTimeout,
	}
}

func (c *CmdChannel) SetDuty(ctx context.Context, deviceId string, channel string, percent int) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCmdTimeout
	}
	_, err := util.SafeCmdExecution(ctx, c.Exec, expandArgs(c.Args, channel, percent), timeout)
	if err != nil {
		return &Error{DeviceId: deviceId, Channel: channel, Err: err}
	}
	return nil
}

func expandArgs(args []string, channel string, percent int) []string {
	duty := strconv.Itoa(percent)
	result := make([]string, len(args))
	for i, arg := range args {
		arg = strings.ReplaceAll(arg, "%d", duty)
		result[i] = strings.ReplaceAll(arg, "%s", channel)
	}
	return result
}
