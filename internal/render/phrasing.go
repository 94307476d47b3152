package render

import "escalator/internal/domain"

type tierRole struct {
	tier domain.Tier
	role domain.Role
}

// Intro lines for SLA tier alerts. The zero Role entry is the fallback for
// roles without their own wording.
var tierIntros = map[tierRole]string{
	{domain.TierApproaching, ""}:                  "An escalated case is approaching its SLA deadline. Please make sure it has an owner.",
	{domain.TierApproaching, domain.RoleCEO}:      "For awareness: an escalated case in your organisation is approaching its SLA deadline. No action is needed yet.",
	{domain.TierApproaching, domain.RoleVP}:       "An escalated case in your region is approaching its SLA deadline. Please confirm your directors are on it.",
	{domain.TierApproaching, domain.RoleDirector}: "An escalated case at one of your stores is approaching its SLA deadline. Please confirm a resolution plan with the store.",

	{domain.TierUrgent, ""}:                  "An escalated case will breach its SLA within hours. Immediate follow-up is required.",
	{domain.TierUrgent, domain.RoleCEO}:      "An escalated case will breach its SLA within hours. Regional leadership has been alerted.",
	{domain.TierUrgent, domain.RoleVP}:       "An escalated case in your region will breach its SLA within hours. Please make sure it is resolved before the deadline.",
	{domain.TierUrgent, domain.RoleDirector}: "An escalated case at your store will breach its SLA within hours. Please contact the customer now.",

	{domain.TierViolated, ""}:                  "An escalated case has breached its SLA deadline.",
	{domain.TierViolated, domain.RoleCEO}:      "An escalated case has breached its SLA deadline. Regional and store leadership have been notified.",
	{domain.TierViolated, domain.RoleVP}:       "An escalated case in your region has breached its SLA deadline. Please review the recovery plan with your director.",
	{domain.TierViolated, domain.RoleDirector}: "An escalated case at your store has breached its SLA deadline. Resolve it and record the customer contact today.",
}

type escalationRole struct {
	kind domain.EscalationType
	role domain.Role
}

var escalationIntros = map[escalationRole]string{
	{domain.EscalationCritical, ""}:                  "A case has been escalated as critical and needs leadership attention.",
	{domain.EscalationCritical, domain.RoleCEO}:      "A critical customer case has been escalated. Your regional leadership is engaged; this is for your awareness.",
	{domain.EscalationCritical, domain.RoleVP}:       "A critical customer case has been escalated in your region. Please make sure your director owns the response.",
	{domain.EscalationCritical, domain.RoleDirector}: "A critical customer case has been escalated at your store. Please contact the customer and update the case.",

	{domain.EscalationSLAViolation, ""}:                  "A case has breached its SLA and has been escalated.",
	{domain.EscalationSLAViolation, domain.RoleCEO}:      "A customer case has breached its SLA and was escalated to leadership.",
	{domain.EscalationSLAViolation, domain.RoleVP}:       "A customer case in your region has breached its SLA. Please review it with the responsible director.",
	{domain.EscalationSLAViolation, domain.RoleDirector}: "A customer case at your store has breached its SLA. Resolve it as a priority.",
}

var tierAccents = map[domain.Tier]string{
	domain.TierApproaching: "#d9822b",
	domain.TierUrgent:      "#db3737",
	domain.TierViolated:    "#8e1b1b",
}

func tierIntro(tier domain.Tier, role domain.Role) string {
	if s, ok := tierIntros[tierRole{tier, role}]; ok {
		return s
	}
	return tierIntros[tierRole{tier, ""}]
}

func escalationIntro(kind domain.EscalationType, role domain.Role) string {
	if s, ok := escalationIntros[escalationRole{kind, role}]; ok {
		return s
	}
	return escalationIntros[escalationRole{kind, ""}]
}
