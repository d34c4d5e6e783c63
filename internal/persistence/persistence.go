package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/markusressel/cool2go/internal/curves"
	"github.com/markusressel/cool2go/internal/ui"
	bolt "go.etcd.io/bbolt"
)

const (
	BucketBindings = "bindings"

	keySeparator = "/"
)

// SourceSetting references the temperature sensor a curve is evaluated against
type SourceSetting struct {
	DeviceId   string `json:"deviceId"`
	SensorName string `json:"sensorName"`
}

// BindingSetting is the persisted configuration of a single device channel
type BindingSetting struct {
	Mode      string         `json:"mode"`
	FixedDuty int            `json:"fixedDuty,omitempty"`
	Points    []curves.Point `json:"points,omitempty"`
	Source    *SourceSetting `json:"source,omitempty"`
}

type Persistence interface {
	Init() error

	LoadBinding(deviceId string, channel string) (BindingSetting, error)
	LoadBindings() (map[string]BindingSetting, error)
	SaveBinding(deviceId string, channel string, setting BindingSetting) error
	DeleteBinding(deviceId string, channel string) error
}

type persistence struct {
	dbPath string
}

func NewPersistence(dbPath string) Persistence {
	p := &persistence{
		dbPath: dbPath,
	}
	return p
}

// BindingKey returns the key a channel's setting is stored under
func BindingKey(deviceId string, channel string) string {
	return deviceId + keySeparator + channel
}

// SplitBindingKey is the inverse of BindingKey
func SplitBindingKey(key string) (deviceId string, channel string, ok bool) {
	deviceId, channel, ok = strings.Cut(key, keySeparator)
	if !ok || len(deviceId) <= 0 || len(channel) <= 0 {
		return "", "", false
	}
	return deviceId, channel, true
}

func (p persistence) Init() (err error) {
	parentDir := filepath.Dir(p.dbPath)
	_, err = os.Stat(parentDir)
	if errors.Is(err, os.ErrNotExist) {
		ui.Info("Creating directory for db: %s", parentDir)
		err = os.MkdirAll(parentDir, 0755)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p persistence) openPersistence() (db *bolt.DB, err error) {
	db, err = bolt.Open(p.dbPath, 0600, &bolt.Options{Timeout: 1 * time.Minute})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// SaveBinding stores the setting of the given channel, replacing any previous one
func (p persistence) SaveBinding(deviceId string, channel string, setting BindingSetting) error {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	data, err := json.Marshal(setting)
	if err != nil {
		return err
	}

	key := BindingKey(deviceId, channel)
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketBindings))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		return b.Put([]byte(key), data)
	})
}

// LoadBinding returns os.ErrNotExist if nothing is stored for the given channel
func (p persistence) LoadBinding(deviceId string, channel string) (BindingSetting, error) {
	db, err := p.openPersistence()
	if err != nil {
		return BindingSetting{}, err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	key := BindingKey(deviceId, channel)

	var setting BindingSetting
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketBindings))
		if b == nil {
			return os.ErrNotExist
		}
		v := b.Get([]byte(key))
		if v == nil {
			return os.ErrNotExist
		}

		err := json.Unmarshal(v, &setting)
		if err != nil {
			// if we cannot read the saved data, delete it
			ui.Warning("Unable to unmarshal saved binding for %s: %v", key, err)
			err := b.Delete([]byte(key))
			if err != nil {
				ui.Error("Unable to delete corrupt data key %s: %v", key, err)
			}
			return os.ErrNotExist
		}
		return nil
	})

	return setting, err
}

// LoadBindings returns all stored settings, keyed by BindingKey.
// Corrupt entries are deleted and skipped.
func (p persistence) LoadBindings() (map[string]BindingSetting, error) {
	db, err := p.openPersistence()
	if err != nil {
		return nil, err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	result := map[string]BindingSetting{}
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketBindings))
		if b == nil {
			return nil
		}

		var corrupt [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var setting BindingSetting
			if err := json.Unmarshal(v, &setting); err != nil {
				ui.Warning("Unable to unmarshal saved binding for %s: %v", string(k), err)
				corrupt = append(corrupt, append([]byte{}, k...))
				return nil
			}
			result[string(k)] = setting
			return nil
		})
		if err != nil {
			return err
		}

		for _, key := range corrupt {
			if err := b.Delete(key); err != nil {
				ui.Error("Unable to delete corrupt data key %s: %v", string(key), err)
			}
		}
		return nil
	})

	return result, err
}

func (p persistence) DeleteBinding(deviceId string, channel string) error {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	key := BindingKey(deviceId, channel)

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketBindings))
		if b == nil {
			// no binding bucket yet
			return nil
		}
		v := b.Get([]byte(key))
		if v == nil {
			// no data for given key
			return nil
		}

		return b.Delete([]byte(key))
	})
}
