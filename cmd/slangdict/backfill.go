package main

import (
	"bytes"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/maxhully/slangdict"
	"github.com/maxhully/slangdict/memeface"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// backfillEmptyAvatars draws a face for every user who doesn't have an avatar.
func backfillEmptyAvatars(conn *sqlite.Conn, log *zap.Logger) (n int, err error) {
	users, err := slangdict.GetUsersWithoutAvatar(conn)
	if err != nil {
		return 0, err
	}

	defer sqlitex.Save(conn)(&err)
	buf := new(bytes.Buffer)
	for i := range users {
		log.Info("backfilling avatar", zap.String("user", users[i].Name))
		if err = memeface.GenerateAvatarPNG(buf); err != nil {
			return n, err
		}
		var uploadID int64
		if uploadID, err = slangdict.SaveUpload(conn, "image/png", buf.Bytes()); err != nil {
			return n, err
		}
		buf.Reset()
		err = slangdict.UpdateUserProfile(conn, users[i].Name, users[i].DisplayName, users[i].Bio, uploadID)
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

var backfillAvatarsCmd = &cobra.Command{
	Use:   "backfill-avatars",
	Short: "Generate avatars for users who don't have one",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		conn := db.Get(cmd.Context())
		if conn == nil {
			return cmd.Context().Err()
		}
		defer db.Put(conn)

		n, err := backfillEmptyAvatars(conn, logger)
		if err != nil {
			return err
		}
		logger.Info("backfilled avatars", zap.Int("count", n))
		return nil
	},
}
