// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/vmihailenco/msgpack/v5"
)

// MarshalParcel serializes a Parcel to bytes.
func MarshalParcel(p *core.Parcel) ([]byte, error) {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: parcel %s: %v", ErrSerializationFailed, p.ID, err)
	}
	return data, nil
}

// UnmarshalParcel deserializes a Parcel from bytes.
func UnmarshalParcel(data []byte) (*core.Parcel, error) {
	var p core.Parcel
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: parcel: %v", ErrSerializationFailed, err)
	}
	return &p, nil
}

// MarshalSnapshot serializes a Snapshot to bytes.
func MarshalSnapshot(s *core.Snapshot) ([]byte, error) {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", ErrSerializationFailed, s.ID, err)
	}
	return data, nil
}

// UnmarshalSnapshot deserializes a Snapshot from bytes.
func UnmarshalSnapshot(data []byte) (*core.Snapshot, error) {
	var s core.Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", ErrSerializationFailed, err)
	}
	return &s, nil
}
