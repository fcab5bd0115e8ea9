/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import "strconv"

var translationFormula = Formula{
	LaTeX: `\begin{pmatrix} x' \\ y' \end{pmatrix} = \begin{pmatrix} x \\ y \end{pmatrix} + \begin{pmatrix} d_x \\ d_y \end{pmatrix}`,
	Plain: "(x', y') = (x + dx, y + dy)",
}

var rotationFormula = Formula{
	LaTeX: `\begin{pmatrix} x' \\ y' \end{pmatrix} = \begin{pmatrix} \cos \theta & -\sin \theta \\ \sin \theta & \cos \theta \end{pmatrix} \begin{pmatrix} x \\ y \end{pmatrix}`,
	Plain: "(x', y') = (x cos(theta) - y sin(theta), x sin(theta) + y cos(theta))",
}

var scalingFormula = Formula{
	LaTeX: `\begin{pmatrix} x' \\ y' \end{pmatrix} = k \begin{pmatrix} x \\ y \end{pmatrix}`,
	Plain: "(x', y') = (k x, k y)",
}

var reflectionFormulas = map[Axis]Formula{
	AxisX:           {LaTeX: `(x, y) \rightarrow (x, -y)`, Plain: "(x, y) -> (x, -y)"},
	AxisY:           {LaTeX: `(x, y) \rightarrow (-x, y)`, Plain: "(x, y) -> (-x, y)"},
	AxisYEqualsX:    {LaTeX: `(x, y) \rightarrow (y, x)`, Plain: "(x, y) -> (y, x)"},
	AxisYEqualsNegX: {LaTeX: `(x, y) \rightarrow (-y, -x)`, Plain: "(x, y) -> (-y, -x)"},
	AxisOrigin:      {LaTeX: `(x, y) \rightarrow (-x, -y)`, Plain: "(x, y) -> (-x, -y)"},
}

// num prints a parameter exactly as given: shortest form, no rounding, sign kept.
func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
