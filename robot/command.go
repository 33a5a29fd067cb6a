package robot

import (
	"ghost-robot/command"
)

// NewUpdateVelocityCommand returns the "updateVel <x> <y>" command bound to r.
func NewUpdateVelocityCommand(r *Robot) *command.Command {
	return &command.Command{
		Name:        "UpdateVelocityCommand",
		Shortcut:    "updateVel",
		Description: "Updates the robot's velocity: updateVel <x> <y> [m/s]",
		Action: func(args []string) error {
			v, err := command.ParseFloats(args, 2)
			if err != nil {
				return err
			}
			r.SetVelocity(v[0], v[1])
			return nil
		},
	}
}
