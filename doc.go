// Package surface provides controls for a control surface: buttons
// and triggers whose appearance and behavior are driven by feedbacks,
// local variables, and actions over connection variables.
//
// The entity model is in package 'core', evaluation is in 'control',
// and some command-line tools are in `cmd`.
package surface
