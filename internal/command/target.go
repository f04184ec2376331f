package command

import "fmt"

// Target is either an object id or a world position. It is resolved once,
// where a command is built.
type Target interface {
	isTarget()
}

// ObjectID targets an object.
type ObjectID int

// Position targets a point in world space.
type Position Vector3

func (ObjectID) isTarget() {}
func (Position) isTarget() {}

// LookAt points an avatar at a target.
func LookAt(avatarID string, t Target) (Command, error) {
	switch t := t.(type) {
	case ObjectID:
		return New("look_at", Params{"avatar_id": avatarID, "object_id": int(t)}), nil
	case Position:
		return New("look_at_position", Params{"avatar_id": avatarID, "position": Vector3(t)}), nil
	}
	return Command{}, fmt.Errorf("%w: target %T", ErrUnencodable, t)
}

// TeleportAvatar moves an avatar to a position.
func TeleportAvatar(avatarID string, position Vector3) Command {
	return New("teleport_avatar_to", Params{"avatar_id": avatarID, "position": position})
}
