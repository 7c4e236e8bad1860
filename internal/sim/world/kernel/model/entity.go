package model

import (
	"errors"
	"strings"
)

type EntityType string

const (
	EntityFriend EntityType = "FRIEND"
	EntityStaff  EntityType = "STAFF"
)

type StaffRole string

const (
	StaffSecurity StaffRole = "SECURITY"
	StaffMedic    StaffRole = "MEDIC"
	StaffTech     StaffRole = "TECH"
	StaffBar      StaffRole = "BAR"
)

type Activity string

const (
	ActivityWalking    Activity = "WALKING"
	ActivityDancing    Activity = "DANCING"
	ActivityWorking    Activity = "WORKING"
	ActivityToilet     Activity = "TOILET"
	ActivityEating     Activity = "EATING"
	ActivityCamping    Activity = "CAMPING"
	ActivityPatrolling Activity = "PATROLLING"
)

// Role is the viewing role that decides which population is simulated.
type Role string

const (
	RolePunter   Role = "PUNTER"
	RolePromoter Role = "PROMOTER"
)

var ErrInvalidRole = errors.New("invalid role")

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RolePunter:
		return RolePunter, nil
	case RolePromoter:
		return RolePromoter, nil
	}
	return "", ErrInvalidRole
}

// Entity is a simulated mover. ID, Name, Type, StaffRole and AvatarColor never
// change after creation.
type Entity struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	StaffRole   StaffRole  `json:"role,omitempty"`
	AvatarColor string     `json:"avatarColor"`

	Position       Coordinate   `json:"position"`
	TargetPosition Coordinate   `json:"targetPosition"`
	Waypoints      []Coordinate `json:"waypoints,omitempty"`
	Activity       Activity     `json:"activity"`
}

func (e Entity) Walking() bool { return e.Activity == ActivityWalking }

// IdleActivity is the state an entity settles into after its final waypoint.
func (e Entity) IdleActivity() Activity {
	if e.Type == EntityStaff {
		return ActivityWorking
	}
	return ActivityDancing
}

// Clone returns a copy that shares no mutable state with e.
func (e Entity) Clone() Entity {
	e.Waypoints = CloneCoords(e.Waypoints)
	return e
}

func CloneEntities(in []Entity) []Entity {
	if in == nil {
		return nil
	}
	out := make([]Entity, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
