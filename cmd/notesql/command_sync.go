package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"

	"github.com/shibukawa/notesql/filesync"
)

// SyncCmd groups the sidecar file operations
type SyncCmd struct {
	Push   SyncPushCmd   `cmd:"" help:"Push local file changes to the remote store"`
	Pull   SyncPullCmd   `cmd:"" help:"Pull remote file changes to the local file system"`
	Status SyncStatusCmd `cmd:"" help:"Show which remote files differ from the local tree"`
	Delete SyncDeleteCmd `cmd:"" help:"Delete files from the remote store"`
	Move   SyncMoveCmd   `cmd:"" help:"Move a file within the remote store"`
}

// SyncPushCmd represents the sync push command
type SyncPushCmd struct {
	Kind string `help:"File tree to operate on" default:"project" enum:"project,dataset"`
	Path string `arg:"" optional:"" help:"Path under the tree; empty means everything"`
}

func (cmd *SyncPushCmd) Run(appCtx *Context) error {
	msg, err := appCtx.sidecarFS(filesync.FileKind(cmd.Kind)).Push(context.Background(), cmd.Path)
	if err != nil {
		return sidecarError(err)
	}

	if !appCtx.Quiet {
		color.Green("%s", msg.Message)
	}

	return nil
}

// SyncPullCmd represents the sync pull command
type SyncPullCmd struct {
	Kind string `help:"File tree to operate on" default:"project" enum:"project,dataset"`
	Path string `arg:"" optional:"" help:"Path under the tree; empty means everything"`
}

func (cmd *SyncPullCmd) Run(appCtx *Context) error {
	msg, err := appCtx.sidecarFS(filesync.FileKind(cmd.Kind)).Pull(context.Background(), cmd.Path)
	if err != nil {
		return sidecarError(err)
	}

	if !appCtx.Quiet {
		color.Green("%s", msg.Message)
	}

	return nil
}

// SyncStatusCmd represents the sync status command
type SyncStatusCmd struct {
	Kind string `help:"File tree to operate on" default:"project" enum:"project,dataset"`
	Path string `arg:"" optional:"" help:"Path under the tree; empty means everything"`
}

// Run lists the remote changes, one line per file with its change marker.
func (cmd *SyncStatusCmd) Run(appCtx *Context) error {
	status, err := appCtx.sidecarFS(filesync.FileKind(cmd.Kind)).Status(context.Background(), cmd.Path)
	if err != nil {
		return sidecarError(err)
	}

	if !status.HasChanges() {
		if !appCtx.Quiet {
			fmt.Fprintln(appCtx.Stdout, "Everything is up to date.")
		}

		return nil
	}

	for _, change := range status.FileChanges {
		switch change.ChangeType {
		case filesync.ChangeAdded:
			color.Green("%s", change)
		case filesync.ChangeModified:
			color.Yellow("%s", change)
		case filesync.ChangeDeleted:
			color.Red("%s", change)
		default:
			fmt.Fprintln(appCtx.Stdout, change)
		}
	}

	return nil
}

// SyncDeleteCmd represents the sync delete command
type SyncDeleteCmd struct {
	Kind string `help:"File tree to operate on" default:"project" enum:"project,dataset"`
	Path string `arg:"" help:"Path under the tree to delete remotely"`
}

func (cmd *SyncDeleteCmd) Run(appCtx *Context) error {
	msg, err := appCtx.sidecarFS(filesync.FileKind(cmd.Kind)).Delete(context.Background(), cmd.Path)
	if err != nil {
		return sidecarError(err)
	}

	if !appCtx.Quiet {
		color.Green("%s", msg.Message)
	}

	return nil
}

// SyncMoveCmd represents the sync move command
type SyncMoveCmd struct {
	Kind string `help:"File tree to operate on" default:"project" enum:"project,dataset"`
	From string `arg:"" help:"Current path in the remote store"`
	To   string `arg:"" help:"Destination path"`
}

func (cmd *SyncMoveCmd) Run(appCtx *Context) error {
	msg, err := appCtx.sidecarFS(filesync.FileKind(cmd.Kind)).Move(context.Background(), cmd.From, cmd.To)
	if err != nil {
		return sidecarError(err)
	}

	if !appCtx.Quiet {
		color.Green("%s", msg.Message)
	}

	return nil
}

// sidecarError trades a sidecar API failure for the message meant for
// users; other failures pass through unchanged.
func sidecarError(err error) error {
	var apiErr *filesync.APIError
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.UserError())
	}

	return err
}
