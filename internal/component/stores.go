package component

import "github.com/sectorgo/engine/internal/core/ecs"

// Stores holds the component columns of one world.
type Stores struct {
	Transform *ecs.Store[Transform]
	Velocity  *ecs.Store[Velocity]
	Collider  *ecs.Store[Collider]
	Sprite    *ecs.Store[Sprite]
	Health    *ecs.Store[Health]
	Behavior  *ecs.Store[BehaviorTag]
	Location  *ecs.Store[Location]
	Player    *ecs.Store[Player]
	Pickup    *ecs.Store[Pickup]
	Intent    *ecs.Store[Intent]
}

// Register creates every component store on w.
func Register(w *ecs.World) *Stores {
	return &Stores{
		Transform: ecs.Register[Transform](w, "transform"),
		Velocity:  ecs.Register[Velocity](w, "velocity"),
		Collider:  ecs.Register[Collider](w, "collider"),
		Sprite:    ecs.Register[Sprite](w, "sprite"),
		Health:    ecs.Register[Health](w, "health"),
		Behavior:  ecs.Register[BehaviorTag](w, "behavior"),
		Location:  ecs.Register[Location](w, "location"),
		Player:    ecs.Register[Player](w, "player"),
		Pickup:    ecs.Register[Pickup](w, "pickup"),
		Intent:    ecs.Register[Intent](w, "intent"),
	}
}
