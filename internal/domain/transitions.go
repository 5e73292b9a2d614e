package domain

// allowedTransitions defines the legal status graph. Terminal side-branches
// cancelado/rejected are reachable from every non-terminal state.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	StatusSolicitado: {StatusAsignado},
	// asignado -> asignado covers re-proposing slots before the visit.
	StatusAsignado:             {StatusAsignado, StatusEnCamino, StatusEnDiagnostico},
	StatusEnCamino:             {StatusEnDiagnostico},
	StatusEnDiagnostico:        {StatusPresupuestoPendiente, StatusPendienteMaterial, StatusEnReparacion},
	// The self-edge covers revalidating an expired quote in place.
	StatusPresupuestoPendiente: {StatusPresupuestoPendiente, StatusPresupuestoRevision, StatusPresupuestoAceptado},
	StatusPresupuestoRevision:  {StatusPresupuestoPendiente, StatusPresupuestoAceptado},
	StatusPresupuestoAceptado:  {StatusAsignado, StatusEnReparacion},
	// Material arrival re-opens scheduling; repair may also start directly.
	StatusPendienteMaterial: {StatusAsignado, StatusEnReparacion},
	StatusEnReparacion:      {StatusPendingPayment, StatusFinalizado},
	// Operator reset of an abandoned digital payment returns to repair.
	StatusPendingPayment: {StatusFinalizado, StatusEnReparacion},
	StatusFinalizado:     {},
	StatusCancelado:      {},
	StatusRejected:       {},
}

// CanTransition reports whether the edge current->next is legal.
func CanTransition(current, next TicketStatus) bool {
	if next == StatusCancelado || next == StatusRejected {
		return !current.IsTerminal()
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// StartsTravelOrDiagnosis reports whether a transition target is gated by
// the operating-window time guard.
func StartsTravelOrDiagnosis(next TicketStatus) bool {
	return next == StatusEnCamino || next == StatusEnDiagnostico
}
