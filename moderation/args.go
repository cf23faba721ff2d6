package moderation

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

const (
	// MaxSearch is the upper bound of any message history scan
	MaxSearch = 2000

	DefaultSearch = 100

	// maxMinutes is the largest minute count that still fits in a time.Duration
	maxMinutes = math.MaxInt64 / int64(time.Minute)
)

type flagKind int

const (
	flagBool flagKind = iota
	flagString
	flagStrings
	flagInt
	// flagMinutes is an int counted in minutes
	flagMinutes
)

type flagDef struct {
	Name  string
	Short string
	Kind  flagKind
}

// PurgeFlags is the option table of "purge custom"
var PurgeFlags = []*flagDef{
	{Name: "user", Kind: flagStrings},
	{Name: "contains", Kind: flagStrings},
	{Name: "starts", Kind: flagStrings},
	{Name: "ends", Kind: flagStrings},
	{Name: "or", Kind: flagBool},
	{Name: "not", Kind: flagBool},
	{Name: "emoji", Kind: flagBool},
	{Name: "bot", Kind: flagBool},
	{Name: "embeds", Kind: flagBool},
	{Name: "files", Kind: flagBool},
	{Name: "reactions", Kind: flagBool},
	{Name: "search", Kind: flagInt},
	{Name: "after", Kind: flagInt},
	{Name: "before", Kind: flagInt},
}

// MassbanFlags is the option table of "massban"
var MassbanFlags = []*flagDef{
	{Name: "channel", Short: "c", Kind: flagString},
	{Name: "reason", Short: "r", Kind: flagString},
	{Name: "search", Kind: flagInt},
	{Name: "regex", Kind: flagString},
	{Name: "no-avatar", Kind: flagBool},
	{Name: "no-roles", Kind: flagBool},
	{Name: "created", Kind: flagMinutes},
	{Name: "joined", Kind: flagMinutes},
	{Name: "joined-before", Kind: flagInt},
	{Name: "joined-after", Kind: flagInt},
	{Name: "contains", Kind: flagString},
	{Name: "starts", Kind: flagString},
	{Name: "ends", Kind: flagString},
	{Name: "match", Kind: flagString},
	{Name: "show", Kind: flagBool},
	{Name: "embeds", Kind: flagBool},
	{Name: "files", Kind: flagBool},
	{Name: "after", Kind: flagInt},
	{Name: "before", Kind: flagInt},
}

// FilterSpec holds the parsed options of a single invocation.
// Zero values mean the option was not given, use Has to tell apart an explicit zero.
type FilterSpec struct {
	Users    []string
	Contains []string
	Starts   []string
	Ends     []string

	Or        bool
	Not       bool
	Emoji     bool
	Bot       bool
	Embeds    bool
	Files     bool
	Reactions bool

	Search int64
	After  int64
	Before int64

	Channel string
	Reason  string
	Regex   string
	Match   string

	NoAvatar bool
	NoRoles  bool
	Show     bool

	// minutes
	Created int64
	Joined  int64

	// member ID's
	JoinedBefore int64
	JoinedAfter  int64

	present map[string]bool
}

// Has returns true if the option (without the leading dashes) was provided
func (f FilterSpec) Has(name string) bool {
	return f.present[name]
}

// PurgeSearchBound is the number of messages a purge scans: 100 by default,
// 2000 if only an --after cursor was given, always clamped to [0, 2000]
func (f FilterSpec) PurgeSearchBound() int {
	search := int64(DefaultSearch)
	if f.Has("search") {
		search = f.Search
	} else if f.Has("after") {
		search = MaxSearch
	}

	return ClampSearch(search, 0)
}

// MassbanSearchBound is the number of messages the channel mode of massban scans, at least 1
func (f FilterSpec) MassbanSearchBound() int {
	search := int64(DefaultSearch)
	if f.Has("search") {
		search = f.Search
	}

	return ClampSearch(search, 1)
}

// ClampSearch clamps n to [min, MaxSearch]
func ClampSearch(n int64, min int64) int {
	if n < min {
		n = min
	}

	if n > MaxSearch {
		n = MaxSearch
	}

	return int(n)
}

// ParseError is returned for malformed option strings, nothing has happened when this is returned
type ParseError struct {
	Flag string
	Msg  string
}

func (p *ParseError) Error() string {
	if p.Flag != "" {
		return "argument " + p.Flag + ": " + p.Msg
	}

	return p.Msg
}

// IsUserError makes dcmd and the command layer show the message as is
func (p *ParseError) IsUserError() bool {
	return true
}

// ParsePurgeArgs parses the option string of "purge custom"
func ParsePurgeArgs(raw string) (FilterSpec, error) {
	return parseArgs(raw, PurgeFlags)
}

// ParseMassbanArgs parses the option string of "massban"
func ParseMassbanArgs(raw string) (FilterSpec, error) {
	return parseArgs(raw, MassbanFlags)
}

func parseArgs(raw string, defs []*flagDef) (FilterSpec, error) {
	spec := FilterSpec{present: make(map[string]bool)}

	tokens, err := shellquote.Split(raw)
	if err != nil {
		return spec, &ParseError{Msg: "unbalanced quoting: " + err.Error()}
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !isFlagToken(tok) {
			return spec, &ParseError{Msg: "unrecognized arguments: " + tok}
		}

		name, inline, hasInline := splitFlagToken(tok)
		def := findFlag(defs, name)
		if def == nil {
			return spec, &ParseError{Msg: "unrecognized arguments: " + tok}
		}

		display := "--" + def.Name
		if def.Short != "" {
			display = "-" + def.Short + "/" + display
		}

		var values []string
		switch def.Kind {
		case flagBool:
			if hasInline {
				return spec, &ParseError{Flag: display, Msg: "ignored explicit argument '" + inline + "'"}
			}
		case flagString, flagInt, flagMinutes:
			if hasInline {
				values = []string{inline}
			} else if i+1 < len(tokens) && !isFlagToken(tokens[i+1]) {
				i++
				values = []string{tokens[i]}
			} else {
				return spec, &ParseError{Flag: display, Msg: "expected one argument"}
			}
		case flagStrings:
			if hasInline {
				values = append(values, inline)
			}
			for i+1 < len(tokens) && !isFlagToken(tokens[i+1]) {
				i++
				values = append(values, tokens[i])
			}
			if len(values) == 0 {
				return spec, &ParseError{Flag: display, Msg: "expected at least one argument"}
			}
		}

		var intVal int64
		if def.Kind == flagInt || def.Kind == flagMinutes {
			intVal, err = strconv.ParseInt(values[0], 10, 64)
			if err != nil {
				return spec, &ParseError{Flag: display, Msg: "invalid int value: '" + values[0] + "'"}
			}
		}
		if def.Kind == flagMinutes && (intVal > maxMinutes || intVal < -maxMinutes) {
			return spec, &ParseError{Flag: display, Msg: "value out of range: '" + values[0] + "'"}
		}

		spec.present[def.Name] = true
		spec.set(def.Name, values, intVal)
	}

	return spec, nil
}

func (f *FilterSpec) set(name string, values []string, intVal int64) {
	switch name {
	case "user":
		f.Users = values
	case "contains":
		f.Contains = values
	case "starts":
		f.Starts = values
	case "ends":
		f.Ends = values
	case "or":
		f.Or = true
	case "not":
		f.Not = true
	case "emoji":
		f.Emoji = true
	case "bot":
		f.Bot = true
	case "embeds":
		f.Embeds = true
	case "files":
		f.Files = true
	case "reactions":
		f.Reactions = true
	case "search":
		f.Search = intVal
	case "after":
		f.After = intVal
	case "before":
		f.Before = intVal
	case "channel":
		f.Channel = values[0]
	case "reason":
		f.Reason = values[0]
	case "regex":
		f.Regex = values[0]
	case "match":
		f.Match = values[0]
	case "no-avatar":
		f.NoAvatar = true
	case "no-roles":
		f.NoRoles = true
	case "show":
		f.Show = true
	case "created":
		f.Created = intVal
	case "joined":
		f.Joined = intVal
	case "joined-before":
		f.JoinedBefore = intVal
	case "joined-after":
		f.JoinedAfter = intVal
	}
}

// isFlagToken reports whether tok names an option, "-10" is a value and not a flag
func isFlagToken(tok string) bool {
	if strings.HasPrefix(tok, "--") {
		return len(tok) > 2
	}

	if len(tok) == 2 && tok[0] == '-' {
		c := tok[1]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}

	return false
}

func splitFlagToken(tok string) (name, inline string, hasInline bool) {
	name = strings.TrimLeft(tok, "-")
	if idx := strings.IndexByte(name, '='); idx != -1 {
		return name[:idx], name[idx+1:], true
	}

	return name, "", false
}

func findFlag(defs []*flagDef, name string) *flagDef {
	for _, v := range defs {
		if v.Name == name || (v.Short != "" && v.Short == name) {
			return v
		}
	}

	return nil
}
