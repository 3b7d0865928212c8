package vaultregistry

import (
	"bytes"
	"encoding/gob"

	"github.com/p2pmmx/escrowd/escrowdb"
	"github.com/p2pmmx/escrowd/escrowerr"
)

func encodeContract(c *Contract) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, escrowerr.Internalf(err, "encode contract %s/%s", c.Token, c.Chain)
	}
	return buf.Bytes(), nil
}

func decodeContract(data []byte) (*Contract, error) {
	var c Contract
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
		return nil, escrowerr.Internalf(err, "decode contract")
	}
	return &c, nil
}

// LoadFromDB reads every contract row out of db, the startup call
// cmd/escrowd makes before handing the decoded rows to Reload.
func LoadFromDB(db *escrowdb.DB) ([]*Contract, error) {
	var out []*Contract
	err := db.ForEachContract(func(data []byte) error {
		c, err := decodeContract(data)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

// SaveToDB persists row under its composite key, for operator tooling
// that provisions one contract at a time (mirrors Registry.Register).
func SaveToDB(db *escrowdb.DB, row *Contract) error {
	data, err := encodeContract(row)
	if err != nil {
		return err
	}
	return db.PutContract(
		row.Name, string(row.Token), string(row.Chain),
		row.FeePercent.String(), row.GroupID, data,
	)
}
