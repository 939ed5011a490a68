package model

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
)

// checkpoint is the on-disk form of a network's weights, keyed by parameter
// name so that heads of a different width can be skipped on load.
type checkpoint struct {
	ImageSize  int
	NumClasses int
	Params     map[string][]float64
}

// SaveCheckpoint writes the network's parameters to path as a gob stream.
func SaveCheckpoint(path string, n *LesionNet) error {
	ck := checkpoint{
		ImageSize:  n.imageSize,
		NumClasses: n.numClasses,
		Params:     make(map[string][]float64, 6),
	}
	for _, p := range n.Parameters() {
		data := make([]float64, len(p.Data))
		copy(data, p.Data)
		ck.Params[p.Name] = data
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create checkpoint")
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(ck); err != nil {
		return errors.Wrap(err, "encode checkpoint")
	}
	return nil
}

// LoadPretrained copies checkpoint weights into n by parameter name.
// Parameters whose sizes differ (a replaced classifier head) are skipped, so
// loading backbone weights into a network with a fresh head is valid.
func LoadPretrained(path string, n *LesionNet) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open checkpoint")
	}
	defer f.Close()
	var ck checkpoint
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return errors.Wrap(err, "decode checkpoint")
	}
	if ck.ImageSize != n.imageSize {
		return errors.Errorf("checkpoint image size %d does not match model %d", ck.ImageSize, n.imageSize)
	}
	loaded := 0
	for _, p := range n.Parameters() {
		data, ok := ck.Params[p.Name]
		if !ok || len(data) != len(p.Data) {
			continue
		}
		copy(p.Data, data)
		loaded++
	}
	if loaded == 0 {
		return errors.New("checkpoint contains no matching parameters")
	}
	return nil
}
