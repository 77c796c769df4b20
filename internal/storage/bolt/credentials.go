package bolt

import (
	"encoding/json"

	"go.etcd.io/bbolt"
	"golang.org/x/oauth2"
)

func (s *Store) PutAPIKey(keyHash, userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(apiKeysBucket)).Put([]byte(keyHash), []byte(userID))
	})
}

func (s *Store) GetAPIKey(keyHash string) (string, bool, error) {
	var userID string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket([]byte(apiKeysBucket)).Get([]byte(keyHash)); v != nil {
			userID = string(v)
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return userID, userID != "", nil
}

func (s *Store) ListAPIKeyHashes(userID string) ([]string, error) {
	hashes := []string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(apiKeysBucket)).ForEach(func(k, v []byte) error {
			if string(v) == userID {
				hashes = append(hashes, string(k))
			}
			return nil
		})
	})
	return hashes, err
}

func (s *Store) DeleteAPIKey(keyHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(apiKeysBucket)).Delete([]byte(keyHash))
	})
}

func (s *Store) PutRefreshToken(userID string, tok *oauth2.Token) error {
	val, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(tokensBucket)).Put([]byte(userID), val)
	})
}

func (s *Store) GetRefreshToken(userID string) (*oauth2.Token, bool, error) {
	var tok *oauth2.Token
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(tokensBucket)).Get([]byte(userID))
		if v == nil {
			return nil
		}
		tok = &oauth2.Token{}
		return json.Unmarshal(v, tok)
	})
	if err != nil {
		return nil, false, err
	}
	return tok, tok != nil, nil
}

func (s *Store) DeleteRefreshToken(userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(tokensBucket)).Delete([]byte(userID))
	})
}
