/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package transform is the transformation engine: a pure mapping from a
// triangle and a transformation spec to the transformed triangle plus the
// text a presentation layer shows next to it.
//
// A Spec is a closed sum type. Translation, Reflection, Rotation and Scaling
// are its only cases; Apply matches them exhaustively and reports anything
// else as ErrUnsupportedTransformation.
package transform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedTransformation marks a Spec that is not one of the four kinds.
	ErrUnsupportedTransformation = errors.New("unsupported transformation")
	// ErrInvalidAxis marks a reflection axis outside the five known ones.
	ErrInvalidAxis = errors.New("invalid reflection axis")
)

// Kind tags the active case of a Spec.
type Kind int

const (
	KindTranslation Kind = iota + 1
	KindReflection
	KindRotation
	KindScaling
)

var kindNames = map[Kind]string{
	KindTranslation: "translation",
	KindReflection:  "reflection",
	KindRotation:    "rotation",
	KindScaling:     "scaling",
}

// Kinds lists every supported kind in menu order.
func Kinds() []Kind { return []Kind{KindTranslation, KindReflection, KindRotation, KindScaling} }

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Title is the capitalised display name, e.g. "Rotation".
func (k Kind) Title() string {
	n, ok := kindNames[k]
	if !ok {
		return k.String()
	}
	return strings.ToUpper(n[:1]) + n[1:]
}

// ParseKind resolves a kind name. "dilation" is accepted for scaling.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "translation", "translate":
		return KindTranslation, nil
	case "reflection", "reflect":
		return KindReflection, nil
	case "rotation", "rotate":
		return KindRotation, nil
	case "scaling", "scale", "dilation":
		return KindScaling, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedTransformation, s)
}

// Axis selects one of the five fixed reflection lines or the origin.
type Axis int

const (
	AxisX Axis = iota + 1
	AxisY
	AxisYEqualsX
	AxisYEqualsNegX
	AxisOrigin
)

type axisInfo struct {
	name        string
	description string
}

var axes = map[Axis]axisInfo{
	AxisX:           {name: "x-axis", description: "the X-axis"},
	AxisY:           {name: "y-axis", description: "the Y-axis"},
	AxisYEqualsX:    {name: "y=x", description: "the line y = x"},
	AxisYEqualsNegX: {name: "y=-x", description: "the line y = -x"},
	AxisOrigin:      {name: "origin", description: "the origin (0,0)"},
}

// Axes lists the reflection axes in menu order.
func Axes() []Axis { return []Axis{AxisX, AxisY, AxisYEqualsX, AxisYEqualsNegX, AxisOrigin} }

// Valid reports whether a is one of the five known axes.
func (a Axis) Valid() bool {
	_, ok := axes[a]
	return ok
}

func (a Axis) String() string {
	if info, ok := axes[a]; ok {
		return info.name
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Description is the phrase used in explanations, e.g. "the line y = x".
func (a Axis) Description() string {
	if info, ok := axes[a]; ok {
		return info.description
	}
	return a.String()
}

// ParseAxis resolves an axis name such as "x-axis", "y=-x" or "origin".
// Spaces are ignored so "y = -x" parses too.
func ParseAxis(s string) (Axis, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch norm {
	case "x", "x-axis", "xaxis":
		return AxisX, nil
	case "y", "y-axis", "yaxis":
		return AxisY, nil
	case "y=x":
		return AxisYEqualsX, nil
	case "y=-x":
		return AxisYEqualsNegX, nil
	case "origin", "o", "(0,0)":
		return AxisOrigin, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAxis, s)
}

// Spec describes one transformation and its parameters. The unexported
// method keeps the set of cases closed to this package.
type Spec interface {
	Kind() Kind
	isSpec()
}

// Translation shifts every point by (DX, DY).
type Translation struct{ DX, DY float64 }

// Reflection mirrors every point in Axis.
type Reflection struct{ Axis Axis }

// Rotation turns every point counter-clockwise about the origin. Degrees is
// used as given; values beyond ±360 are valid.
type Rotation struct{ Degrees float64 }

// Scaling multiplies every point by Factor about the origin. Negative
// factors also reflect through the origin and zero collapses to it.
type Scaling struct{ Factor float64 }

func (Translation) Kind() Kind { return KindTranslation }
func (Reflection) Kind() Kind  { return KindReflection }
func (Rotation) Kind() Kind    { return KindRotation }
func (Scaling) Kind() Kind     { return KindScaling }

func (Translation) isSpec() {}
func (Reflection) isSpec()  {}
func (Rotation) isSpec()    {}
func (Scaling) isSpec()     {}
