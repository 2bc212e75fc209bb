// Package sessionstore はセッション本体をサーバー側に保存する gin-contrib/sessions 用ストアです。
// Cookie には署名付きのセッションIDだけを載せます。
package sessionstore

import (
	"context"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
)

const (
	keyPrefix     = "session:"
	defaultMaxAge = 3600
	saveTimeout   = 3 * time.Second
)

// Store は Backend にセッション値を保存する ginsessions.Store 実装です。
type Store struct {
	Codecs  []securecookie.Codec
	backend Backend
	options *gsessions.Options
}

var _ ginsessions.Store = (*Store)(nil)

// New は Store を作成します。keyPairs はセッションID Cookie の署名鍵です。
func New(backend Backend, keyPairs ...[]byte) *Store {
	s := &Store{
		Codecs:  securecookie.CodecsFromPairs(keyPairs...),
		backend: backend,
		options: &gsessions.Options{
			Path:     "/",
			MaxAge:   defaultMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	}
	s.setCodecMaxAge(defaultMaxAge)
	return s
}

// Options は Cookie 属性とセッションの有効期間を設定します。
func (s *Store) Options(options ginsessions.Options) {
	s.options = options.ToGorillaOptions()
	s.setCodecMaxAge(options.MaxAge)
}

func (s *Store) setCodecMaxAge(maxAge int) {
	for _, codec := range s.Codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(maxAge)
		}
	}
}

// Get はリクエスト内でキャッシュされたセッションを返します。
func (s *Store) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New は Cookie のセッションIDから保存済みの値を読み込みます。
// ID が無い・改ざんされている・期限切れの場合は空のセッションを返します。
func (s *Store) New(r *http.Request, name string) (*gsessions.Session, error) {
	session := gsessions.NewSession(s, name)
	opts := *s.options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.Codecs...); err != nil {
		return session, fmt.Errorf("sessionstore: invalid session cookie: %w", err)
	}

	data, err := s.backend.Load(r.Context(), keyPrefix+id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return session, nil
		}
		return session, fmt.Errorf("sessionstore: load: %w", err)
	}
	if err := decodeValues(data, session.Values); err != nil {
		return session, fmt.Errorf("sessionstore: decode: %w", err)
	}

	session.ID = id
	session.IsNew = false
	return session, nil
}

// Save はセッション値を保存し、署名付きIDを Cookie に書き込みます。
// MaxAge < 0 の場合はセッションを破棄します。
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *gsessions.Session) error {
	ctx, cancel := context.WithTimeout(r.Context(), saveTimeout)
	defer cancel()

	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.backend.Delete(ctx, keyPrefix+session.ID); err != nil {
				return fmt.Errorf("sessionstore: delete: %w", err)
			}
		}
		http.SetCookie(w, gsessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = newSessionID()
	}

	data, err := encodeValues(session.Values)
	if err != nil {
		return fmt.Errorf("sessionstore: encode: %w", err)
	}

	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if ttl == 0 {
		ttl = defaultMaxAge * time.Second
	}
	if err := s.backend.Save(ctx, keyPrefix+session.ID, data, ttl); err != nil {
		return fmt.Errorf("sessionstore: save: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("sessionstore: encode cookie: %w", err)
	}
	http.SetCookie(w, gsessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

func newSessionID() string {
	return strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
}

// セッション値は文字列キーのJSONで保存する。
func encodeValues(values map[interface{}]interface{}) ([]byte, error) {
	m := make(map[string]interface{}, len(values))
	for k, v := range values {
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("non-string session key %v", k)
		}
		m[key] = v
	}
	return json.Marshal(m)
}

func decodeValues(data []byte, into map[interface{}]interface{}) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for k, v := range m {
		into[k] = v
	}
	return nil
}
