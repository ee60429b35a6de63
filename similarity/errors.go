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


package similarity

import "errors"

var (
	// ErrDimensionMismatch indicates a vector of the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateID indicates two entries share an ID.
	ErrDuplicateID = errors.New("duplicate vector id")

	// ErrUnsupportedFormat indicates a snapshot written by an unknown format version.
	ErrUnsupportedFormat = errors.New("unsupported similarity snapshot format")

	// ErrCorruptSnapshot indicates a snapshot whose graph or ID table is inconsistent.
	ErrCorruptSnapshot = errors.New("corrupt similarity snapshot")
)
