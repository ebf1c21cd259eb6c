package identity

import "strings"

// Role é o papel efetivo de um principal no app.
type Role string

const (
	RoleAdministrador Role = "administrador"
	RoleLider         Role = "lider"
	RoleTrabalhador   Role = "trabalhador"
	RoleNaoAutorizado Role = "nao_autorizado"
)

// Tipos gravados no registro de usuário.
const (
	TipoLider       = "lider"
	TipoFuncionario = "funcionario"
	TipoTrabalhador = "trabalhador"
)

// Mensagens exibidas quando o principal não recebe um papel.
const (
	MsgUsuarioNaoEncontrado = "Usuário não encontrado. Cadastre-se ou contate o líder."
	MsgUsuarioSemTipo       = "Usuário sem tipo definido. Contate o líder."
	MsgTipoInvalido         = "Tipo de usuário inválido."
)

// ParseRole converte o valor do token em Role; valores desconhecidos viram RoleNaoAutorizado.
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdministrador:
		return RoleAdministrador
	case RoleLider:
		return RoleLider
	case RoleTrabalhador:
		return RoleTrabalhador
	default:
		return RoleNaoAutorizado
	}
}

// RoleFromTipo mapeia o tipo do registro de usuário para um papel.
func RoleFromTipo(tipo string) (Role, string) {
	tipo = strings.ToLower(strings.TrimSpace(tipo))
	switch tipo {
	case "":
		return RoleNaoAutorizado, MsgUsuarioSemTipo
	case TipoLider:
		return RoleLider, ""
	case TipoFuncionario, TipoTrabalhador:
		return RoleTrabalhador, ""
	default:
		return RoleNaoAutorizado, MsgTipoInvalido
	}
}
