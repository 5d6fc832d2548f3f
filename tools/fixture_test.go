package tools

import (
	"testing"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/sio"
)

var buttonSrc = `
id: b1
type: button
style:
  text: "Vol $(mixer:volume)"
feedbacks:
  - id: f1
    type: feedback
    connectionId: internal
    definitionId: logic_and
    headline: "*Loud* and on"
    isInverted: true
    children:
      children:
        - id: f2
          type: feedback
          connectionId: internal
          definitionId: check_expression
          options:
            expression:
              isExpression: true
              value: "$(mixer:volume) != 0"
        - id: f3
          type: feedback
          connectionId: mixer
          definitionId: power
          disabled: true
    style:
      color: 255
localVariables:
  - id: l1
    type: localVariable
    definitionId: constant
    options:
      name: x
      value: 3
steps:
  order: ["0"]
  steps:
    "0":
      options:
        runWhileHeld: []
      action_sets:
        down:
          - id: a1
            type: action
            connectionId: mixer
            definitionId: mute
        "500":
          - id: a2
            type: action
            connectionId: internal
            definitionId: wait
            options:
              time: 100
`

func fixture(t *testing.T, src string) *control.Data {
	ds, err := sio.ParseControls([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 1 {
		t.Fatalf("got %d controls", len(ds))
	}
	return ds[0]
}
