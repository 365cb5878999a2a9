package slangdict

import (
	"bytes"
	"context"
	"crypto/rand"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/maxhully/slangdict/memeface"
)

// The SQL schema for the app's database
//
//go:embed schema.sql
var schemaSQL string

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// Functions in this package take a *sqlite.Conn rather than the pool, so that
// callers decide which connection (and which savepoint) a query runs in.
type DB struct {
	*sqlitex.Pool
}

func setUpDb(conn *sqlite.Conn) error {
	return sqlitex.ExecScript(conn, schemaSQL)
}

func NewDB(uri string, poolSize int) (*DB, error) {
	dbpool, err := sqlitex.Open(uri, 0, poolSize)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	conn := dbpool.Get(context.Background())
	if conn == nil {
		dbpool.Close()
		return nil, errors.New("couldn't get a connection")
	}
	defer dbpool.Put(conn)

	if err := setUpDb(conn); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("couldn't set up db: %w", err)
	}
	return &DB{dbpool}, nil
}

// Terms lists every distinct word that has at least one definition. It is the
// vocabulary source for the term linker.
func (db *DB) Terms(ctx context.Context) ([]string, error) {
	conn := db.Get(ctx)
	if conn == nil {
		return nil, fmt.Errorf("get connection: %w", ctx.Err())
	}
	defer db.Put(conn)
	return GetDistinctWords(conn)
}

type User struct {
	UserID         int64
	Name           string
	DisplayName    string
	Bio            string
	AvatarUploadID int64
}

func (u *User) Exists() bool {
	return u.UserID > 0
}

func (u *User) URL() string {
	return userURL(u.Name)
}

func (u *User) AvatarURL() string {
	if u.AvatarUploadID == 0 {
		return ""
	}
	return uploadURL(u.AvatarUploadID)
}

// ShownName is the display name, falling back to the user name.
func (u *User) ShownName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

func userURL(userName string) string {
	return fmt.Sprintf("/u/%s/", url.PathEscape(userName))
}

func uploadURL(uploadID int64) string {
	return fmt.Sprintf("/uploads/%d.png", uploadID)
}

type UserSession struct {
	UserID          int64
	SessionPublicID []byte
	ExpirationTime  time.Time
}

const defaultSessionDuration time.Duration = time.Hour * 48

func utcNow() time.Time {
	return time.Now().UTC()
}

const userColumns = "user_id, user_name, display_name, bio, coalesce(avatar_upload_id, 0)"

func scanUser(stmt *sqlite.Stmt) *User {
	return &User{
		UserID:         stmt.ColumnInt64(0),
		Name:           stmt.ColumnText(1),
		DisplayName:    stmt.ColumnText(2),
		Bio:            stmt.ColumnText(3),
		AvatarUploadID: stmt.ColumnInt64(4),
	}
}

func GetUserByName(conn *sqlite.Conn, name string) (*User, error) {
	var user *User
	query := "select " + userColumns + " from user where user_name = ? limit 1"
	collect := func(stmt *sqlite.Stmt) error {
		user = scanUser(stmt)
		return nil
	}
	err := sqlitex.Exec(conn, query, collect, name)
	return user, err
}

// GetUsersWithoutAvatar is used to backfill avatars for old accounts.
func GetUsersWithoutAvatar(conn *sqlite.Conn) ([]User, error) {
	var users []User
	query := "select " + userColumns + " from user where avatar_upload_id is null order by user_id"
	collect := func(stmt *sqlite.Stmt) error {
		users = append(users, *scanUser(stmt))
		return nil
	}
	err := sqlitex.Exec(conn, query, collect)
	return users, err
}

// CreateUser stores a new user with a freshly generated avatar.
func CreateUser(conn *sqlite.Conn, name string, password string) (user *User, err error) {
	defer sqlitex.Save(conn)(&err)

	hashAndSalt, err := HashAndSaltPassword([]byte(password))
	if err != nil {
		return nil, err
	}
	avatarUploadID, err := GenerateAvatar(conn)
	if err != nil {
		return nil, fmt.Errorf("generate avatar: %w", err)
	}
	query := `
		insert into user (user_name, password_salt, password_hash, avatar_upload_id, created_at)
		values (?, ?, ?, ?, ?)`
	err = sqlitex.Exec(conn, query, nil, name, hashAndSalt.Salt, hashAndSalt.Hash, avatarUploadID, utcNow().Unix())
	if err != nil {
		return nil, err
	}
	user = &User{UserID: conn.LastInsertRowID(), Name: name, AvatarUploadID: avatarUploadID}
	return user, nil
}

// GetUserPassword returns the user and their stored password, or nil if no
// user has that name.
func GetUserPassword(conn *sqlite.Conn, name string) (*User, *HashAndSalt, error) {
	var user *User
	var hashAndSalt HashAndSalt
	query := "select " + userColumns + ", password_salt, password_hash from user where user_name = ? limit 1"
	collect := func(stmt *sqlite.Stmt) error {
		var err error
		user = scanUser(stmt)
		if hashAndSalt.Salt, err = io.ReadAll(stmt.ColumnReader(5)); err != nil {
			return err
		}
		hashAndSalt.Hash, err = io.ReadAll(stmt.ColumnReader(6))
		return err
	}
	if err := sqlitex.Exec(conn, query, collect, name); err != nil {
		return nil, nil, err
	}
	return user, &hashAndSalt, nil
}

// UpdateUserProfile sets the display name and bio. An avatarUploadID of zero
// leaves the avatar alone.
func UpdateUserProfile(conn *sqlite.Conn, name string, displayName string, bio string, avatarUploadID int64) error {
	var err error
	if avatarUploadID == 0 {
		query := "update user set display_name = ?, bio = ? where user_name = ?"
		err = sqlitex.Exec(conn, query, nil, displayName, bio, name)
	} else {
		query := "update user set display_name = ?, bio = ?, avatar_upload_id = ? where user_name = ?"
		err = sqlitex.Exec(conn, query, nil, displayName, bio, avatarUploadID, name)
	}
	if err != nil {
		return err
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	return nil
}

func CreateUserSession(conn *sqlite.Conn, userID int64) (*UserSession, error) {
	sessionPublicID := make([]byte, 128)
	if _, err := rand.Read(sessionPublicID); err != nil {
		return nil, err
	}
	now := utcNow()
	expirationTime := now.Add(defaultSessionDuration)
	query := `
		insert into user_session (user_id, session_public_id, created_at, expiration_time)
		values (?, ?, ?, ?)`
	err := sqlitex.Exec(conn, query, nil, userID, sessionPublicID, now.Unix(), expirationTime.Unix())
	if err != nil {
		return nil, err
	}
	session := &UserSession{
		UserID:          userID,
		SessionPublicID: sessionPublicID,
		ExpirationTime:  expirationTime,
	}
	return session, nil
}

func GetUserFromSessionPublicID(conn *sqlite.Conn, sessionPublicID []byte) (*User, error) {
	query := `
		select user_id, user.user_name, user.display_name, user.bio, coalesce(user.avatar_upload_id, 0)
		from user_session
		join user using (user_id)
		where session_public_id = ? and expiration_time > ?`
	var user *User
	collect := func(stmt *sqlite.Stmt) error {
		user = scanUser(stmt)
		return nil
	}
	err := sqlitex.Exec(conn, query, collect, sessionPublicID, utcNow().Unix())
	return user, err
}

func DeleteUserSession(conn *sqlite.Conn, sessionPublicID []byte) error {
	return sqlitex.Exec(conn, "delete from user_session where session_public_id = ?", nil, sessionPublicID)
}

func SaveUpload(conn *sqlite.Conn, contentType string, contents []byte) (int64, error) {
	query := "insert into upload (content_type, contents, created_at) values (?, ?, ?)"
	if err := sqlitex.Exec(conn, query, nil, contentType, contents, utcNow().Unix()); err != nil {
		return 0, err
	}
	return conn.LastInsertRowID(), nil
}

// OpenUploadContents returns a reader over the stored bytes. The caller must
// close it before putting the connection back.
func OpenUploadContents(conn *sqlite.Conn, uploadID int64) (*sqlite.Blob, string, error) {
	var contentType string
	found := false
	collect := func(stmt *sqlite.Stmt) error {
		contentType = stmt.ColumnText(0)
		found = true
		return nil
	}
	err := sqlitex.Exec(conn, "select content_type from upload where upload_id = ?", collect, uploadID)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", fmt.Errorf("upload %d: %w", uploadID, ErrNotFound)
	}
	blob, err := conn.OpenBlob("main", "upload", "contents", uploadID, false)
	if err != nil {
		return nil, "", err
	}
	return blob, contentType, nil
}

// GenerateAvatar draws a calm random face and stores it as a PNG upload.
func GenerateAvatar(conn *sqlite.Conn) (int64, error) {
	buf := new(bytes.Buffer)
	if err := memeface.GenerateAvatarPNG(buf); err != nil {
		return 0, err
	}
	return SaveUpload(conn, "image/png", buf.Bytes())
}
