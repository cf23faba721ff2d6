package moderation

// HierarchyError is returned by Authorizer.Check when the target is out of reach
type HierarchyError struct {
	Msg string
}

func (h *HierarchyError) Error() string {
	return h.Msg
}

func (h *HierarchyError) IsUserError() bool {
	return true
}

var (
	ErrTargetOwner     = &HierarchyError{Msg: "The server owner can't be targeted."}
	ErrTargetSelf      = &HierarchyError{Msg: "You can't target yourself."}
	ErrTargetAboveYou  = &HierarchyError{Msg: "You can't target members with a highest role equal to or above yours."}
	ErrTargetBotSelf   = &HierarchyError{Msg: "I can't target myself."}
	ErrTargetAboveBot  = &HierarchyError{Msg: "I can't target members with a highest role equal to or above mine."}
	errNoHierarchyInfo = &HierarchyError{Msg: "Missing server information, try again in a moment."}
)

// Authorizer implements the role hierarchy rule:
// the actor may target someone if they are the guild owner, the application owner,
// or their highest role is strictly above the target's highest role.
// If Bot is set the bot has to pass the same rule, minus the application owner exception.
type Authorizer struct {
	Guild      *GuildInfo
	AppOwnerID int64
	Actor      *MemberCandidate
	// Bot is set for operations where the bot mutates the target (bans)
	Bot *MemberCandidate
	// AllowSelf lets the actor target themselves
	AllowSelf bool
}

// Rank returns the position of the member's highest role, 0 (@everyone) without roles
func (a *Authorizer) Rank(m *MemberCandidate) int {
	rank := 0
	for _, r := range m.Roles {
		if pos, ok := a.Guild.Roles[r]; ok && pos > rank {
			rank = pos
		}
	}

	return rank
}

// Check returns a HierarchyError describing why target can't be targeted, or nil
func (a *Authorizer) Check(target *MemberCandidate) error {
	if a.Guild == nil || a.Actor == nil {
		return errNoHierarchyInfo
	}

	if err := a.checkActor(target); err != nil {
		return err
	}

	if a.Bot != nil {
		return a.checkBot(target)
	}

	return nil
}

// Allowed is Check for mass operations, where the reason does not matter
func (a *Authorizer) Allowed(target *MemberCandidate) bool {
	return a.Check(target) == nil
}

func (a *Authorizer) checkActor(target *MemberCandidate) error {
	if target.UserID == a.Actor.UserID {
		if a.AllowSelf {
			return nil
		}
		return ErrTargetSelf
	}

	// nobody outranks the owner
	if target.UserID == a.Guild.OwnerID {
		return ErrTargetOwner
	}

	if a.Actor.UserID == a.Guild.OwnerID || (a.AppOwnerID != 0 && a.Actor.UserID == a.AppOwnerID) {
		return nil
	}

	if a.Rank(a.Actor) > a.Rank(target) {
		return nil
	}

	return ErrTargetAboveYou
}

func (a *Authorizer) checkBot(target *MemberCandidate) error {
	if target.UserID == a.Bot.UserID {
		return ErrTargetBotSelf
	}

	if target.UserID == a.Guild.OwnerID {
		return ErrTargetOwner
	}

	if a.Bot.UserID == a.Guild.OwnerID {
		return nil
	}

	if a.Rank(a.Bot) > a.Rank(target) {
		return nil
	}

	return ErrTargetAboveBot
}
