package common

import (
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/snowflake"
	"github.com/jonas747/discordgo/v2"
)

func init() {
	// Discord epoch
	snowflake.Epoch = 1420070400000
}

// DiscordError returns the discord error code and message if err is a discord REST error
func DiscordError(err error) (code int, msg string) {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return 0, ""
	}

	if restErr.Message == nil {
		return 0, ""
	}

	return restErr.Message.Code, restErr.Message.Message
}

// IsDiscordErr returns true if err is a discord REST error with one of the provided codes
func IsDiscordErr(err error, codes ...int) bool {
	code, _ := DiscordError(err)
	if code == 0 {
		return false
	}

	for _, v := range codes {
		if v == code {
			return true
		}
	}

	return false
}

// IsDiscordPermissionErr returns true if discord refused the request because of missing permissions
func IsDiscordPermissionErr(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}

	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return true
	}

	return IsDiscordErr(err, discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess)
}

// SnowflakeTime returns the creation time embedded in a discord ID
func SnowflakeTime(id int64) time.Time {
	ms := snowflake.ID(id).Time()
	return time.Unix(0, ms*int64(time.Millisecond))
}
