package interpreters

import (
	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/interpreters/goja"
	"github.com/Comcast/surface/interpreters/noop"
)

// Standard returns the interpreters that definition callbacks can
// name.
func Standard() core.InterpretersMap {
	is := core.NewInterpretersMap()

	js := goja.NewInterpreter()
	is["goja"] = js
	is["ecmascript"] = js
	is["ecmascript-5.1"] = js

	is["noop"] = noop.NewInterpreter()

	return is
}
