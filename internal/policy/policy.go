// Package policy holds the (operation, role) capability table checked at
// the entry of every state-changing operation.
package policy

import (
	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/models"
)

// Action names an operation subject to role gating
type Action string

const (
	ActionPlanManage Action = "plan.manage"

	ActionClientManage Action = "client.manage"
	ActionClientView   Action = "client.view"

	ActionServiceCreate      Action = "service.create"
	ActionServiceView        Action = "service.view"
	ActionServiceInstall     Action = "service.complete_installation"
	ActionServiceSuspend     Action = "service.suspend"
	ActionServiceReactivate  Action = "service.reactivate"
	ActionServiceChangePlan  Action = "service.change_plan"
	ActionServiceRecordUsage Action = "service.record_usage"
	ActionServiceDiscount    Action = "service.discount"
	ActionServiceSchedule    Action = "service.schedule"
	ActionServiceNote        Action = "service.note"
	ActionServiceMonitor     Action = "service.monitor"
	ActionServiceCancel      Action = "service.cancel"
	ActionServiceMaintenance Action = "service.maintenance"

	ActionReceiptCreate Action = "receipt.create"
	ActionReceiptView   Action = "receipt.view"
	ActionReceiptPay    Action = "receipt.pay"
	ActionReceiptRefund Action = "receipt.refund"
	ActionReceiptVoid   Action = "receipt.void"

	ActionTicketCreate Action = "ticket.create"
	ActionTicketView   Action = "ticket.view"
	ActionTicketUpdate Action = "ticket.update"
	ActionTicketReply  Action = "ticket.reply"

	ActionEquipmentManage Action = "equipment.manage"
	ActionEquipmentReport Action = "equipment.report"
	ActionEquipmentView   Action = "equipment.view"

	ActionUserManage Action = "user.manage"
)

var (
	admins   = []models.Role{models.RoleAdmin, models.RoleSupervisor}
	finance  = []models.Role{models.RoleAdmin, models.RoleSupervisor, models.RoleBilling}
	frontend = []models.Role{models.RoleAdmin, models.RoleSupervisor, models.RoleOperator}
	field    = []models.Role{models.RoleAdmin, models.RoleSupervisor, models.RoleTechnician}
	staff    = []models.Role{models.RoleAdmin, models.RoleSupervisor, models.RoleOperator, models.RoleBilling, models.RoleTechnician}
	everyone = append(append([]models.Role{}, staff...), models.RoleClient)
)

func with(base []models.Role, extra ...models.Role) []models.Role {
	return append(append([]models.Role{}, base...), extra...)
}

// Table maps each action to the roles allowed to perform it
type Table map[Action]map[models.Role]bool

func build(rules map[Action][]models.Role) Table {
	t := make(Table, len(rules))
	for action, roles := range rules {
		set := make(map[models.Role]bool, len(roles))
		for _, r := range roles {
			set[r] = true
		}
		t[action] = set
	}
	return t
}

// Default is the production capability table
var Default = build(map[Action][]models.Role{
	ActionPlanManage: admins,

	ActionClientManage: frontend,
	ActionClientView:   everyone,

	ActionServiceCreate:      frontend,
	ActionServiceView:        everyone,
	ActionServiceInstall:     field,
	ActionServiceSuspend:     with(frontend, models.RoleBilling),
	ActionServiceReactivate:  with(frontend, models.RoleBilling),
	ActionServiceChangePlan:  finance,
	ActionServiceRecordUsage: with(frontend, models.RoleTechnician),
	ActionServiceDiscount:    finance,
	ActionServiceSchedule:    finance,
	ActionServiceNote:        staff,
	ActionServiceMonitor:     with(field, models.RoleOperator),
	ActionServiceCancel:      with(frontend, models.RoleBilling),
	ActionServiceMaintenance: field,

	ActionReceiptCreate: finance,
	ActionReceiptView:   with(finance, models.RoleOperator, models.RoleClient),
	ActionReceiptPay:    with(finance, models.RoleOperator),
	ActionReceiptRefund: admins,
	ActionReceiptVoid:   finance,

	ActionTicketCreate: everyone,
	ActionTicketView:   everyone,
	ActionTicketUpdate: with(frontend, models.RoleTechnician),
	ActionTicketReply:  everyone,

	ActionEquipmentManage: field,
	ActionEquipmentReport: with(field, models.RoleOperator),
	ActionEquipmentView:   everyone,

	ActionUserManage: []models.Role{models.RoleAdmin},
})

// Actor is the authenticated principal performing an operation
type Actor struct {
	SubjectID string
	Role      models.Role
	ClientID  string // set when Role is client
}

// IsClient reports whether the actor is a client acting on its own data
func (a Actor) IsClient() bool {
	return a.Role == models.RoleClient
}

// Allowed reports whether role may perform action
func (t Table) Allowed(action Action, role models.Role) bool {
	return t[action][role]
}

// Check returns an Authorization error when actor may not perform action
func (t Table) Check(actor Actor, action Action) error {
	if actor.SubjectID == "" || !actor.Role.Valid() {
		return apperr.Forbidden(string(action), "unauthenticated actor")
	}
	if !t.Allowed(action, actor.Role) {
		return apperr.Forbidden(string(action), "role %s may not perform %s", actor.Role, action)
	}
	return nil
}

// CheckOwner additionally restricts client actors to their own client id
func (t Table) CheckOwner(actor Actor, action Action, clientID string) error {
	if err := t.Check(actor, action); err != nil {
		return err
	}
	if actor.IsClient() && actor.ClientID != clientID {
		return apperr.Forbidden(string(action), "client may only access its own records")
	}
	return nil
}
