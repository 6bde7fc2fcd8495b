// Package admin implements the maintenance commands of the aurora CLI. They
// go through the same synchronization layer as the bot.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"aurora/internal/record"
	"aurora/internal/recordsync"
	"aurora/pkg/cmd"
	"aurora/pkg/util"
)

// DateLayout renders record timestamps in CLI output.
const DateLayout = "YYYY-MM-DD hh:mm:ss"

var ErrUsage = errors.New("usage error")

// Env is the invocation data every admin command receives.
type Env struct {
	Records *recordsync.Syncer
	Out     io.Writer
}

// Register adds the user and guild commands to r.
func Register(r *cmd.Registry) {
	r.Register(&cmd.Func{
		CmdName: "user",
		Desc:    "user get|set|rm <guild-id> <user-id> [key=value ...]",
		RunFunc: runUser,
	})
	r.Register(&cmd.Func{
		CmdName: "guild",
		Desc:    "guild get|set|rm <guild-id> [key=value ...]",
		RunFunc: runGuild,
	})
}

type view struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id,omitempty"`
	GuildID   string        `json:"guild_id"`
	Data      record.Fields `json:"data"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

func envOf(inv *cmd.Invocation) (*Env, error) {
	env, ok := inv.Data.(*Env)
	if !ok {
		return nil, fmt.Errorf("unexpected invocation data %T", inv.Data)
	}
	return env, nil
}

func runUser(ctx context.Context, inv *cmd.Invocation) error {
	env, err := envOf(inv)
	if err != nil {
		return err
	}
	if len(inv.Args) < 3 {
		return fmt.Errorf("%w: user get|set|rm <guild-id> <user-id> [key=value ...]", ErrUsage)
	}
	op, guildID, userID := inv.Args[0], inv.Args[1], inv.Args[2]
	key := record.UserKey{UserID: userID, GuildID: guildID}

	switch op {
	case "get":
		u, err := env.Records.FindUser(ctx, key)
		if err != nil {
			return err
		}
		return write(env.Out, userView(u))
	case "set":
		data, err := parseFields(inv.Args[3:])
		if err != nil {
			return err
		}
		u, err := env.Records.SaveUser(ctx, key, data)
		if err != nil {
			return err
		}
		return write(env.Out, userView(u))
	case "rm":
		n, err := env.Records.DropUser(ctx, key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(env.Out, "removed %d record(s)\n", n)
		return err
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrUsage, op)
	}
}

func runGuild(ctx context.Context, inv *cmd.Invocation) error {
	env, err := envOf(inv)
	if err != nil {
		return err
	}
	if len(inv.Args) < 2 {
		return fmt.Errorf("%w: guild get|set|rm <guild-id> [key=value ...]", ErrUsage)
	}
	op, guildID := inv.Args[0], inv.Args[1]

	switch op {
	case "get":
		g, err := env.Records.FindGuild(ctx, guildID)
		if err != nil {
			return err
		}
		return write(env.Out, guildView(g))
	case "set":
		data, err := parseFields(inv.Args[2:])
		if err != nil {
			return err
		}
		g, err := env.Records.SaveGuild(ctx, guildID, data)
		if err != nil {
			return err
		}
		return write(env.Out, guildView(g))
	case "rm":
		n, err := env.Records.DropGuild(ctx, guildID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(env.Out, "removed %d record(s)\n", n)
		return err
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrUsage, op)
	}
}

// parseFields reads key=value pairs; values that parse as JSON keep their type.
func parseFields(args []string) (record.Fields, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one key=value pair is required", ErrUsage)
	}
	out := make(record.Fields, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q is not key=value", ErrUsage, arg)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out, nil
}

func userView(u *record.User) view {
	return view{
		ID:        u.ID,
		UserID:    u.UserID,
		GuildID:   u.GuildID,
		Data:      u.Data,
		CreatedAt: util.FormatDateTpl(u.CreatedAt, DateLayout),
		UpdatedAt: util.FormatDateTpl(u.UpdatedAt, DateLayout),
	}
}

func guildView(g *record.Guild) view {
	return view{
		ID:        g.ID,
		GuildID:   g.GuildID,
		Data:      g.Data,
		CreatedAt: util.FormatDateTpl(g.CreatedAt, DateLayout),
		UpdatedAt: util.FormatDateTpl(g.UpdatedAt, DateLayout),
	}
}

func write(w io.Writer, v view) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
