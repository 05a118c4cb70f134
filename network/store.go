package network

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS models (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    format_version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS nodes (
    ord INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL UNIQUE,
    op TEXT NOT NULL,
    rows INTEGER NOT NULL,
    cols INTEGER NOT NULL,
    learnable INTEGER NOT NULL,
    need_gradient INTEGER NOT NULL,
    value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS edges (
    node_name TEXT NOT NULL,
    slot INTEGER NOT NULL,
    input_name TEXT NOT NULL,
    PRIMARY KEY (node_name, slot)
);
CREATE TABLE IF NOT EXISTS roles (
    role TEXT NOT NULL,
    ord INTEGER NOT NULL,
    node_name TEXT NOT NULL,
    PRIMARY KEY (role, ord)
);
`

const formatVersion = 1

// SaveToFile writes the network as a SQLite model file at path. An existing
// file is replaced in a single transaction.
func (n *Network) SaveToFile(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open model %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(storeSchema); err != nil {
		return fmt.Errorf("init model schema: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"models", "nodes", "edges", "roles"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	if _, err := tx.Exec("INSERT INTO models (id, format_version) VALUES (1, ?)", formatVersion); err != nil {
		return err
	}

	insNode, err := tx.Prepare(
		"INSERT INTO nodes (ord, id, name, op, rows, cols, learnable, need_gradient, value) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer insNode.Close()
	insEdge, err := tx.Prepare("INSERT INTO edges (node_name, slot, input_name) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer insEdge.Close()

	for ord, node := range n.order {
		value, err := json.Marshal(node.Value)
		if err != nil {
			return err
		}
		if _, err := insNode.Exec(ord, node.id.String(), node.name, node.Op,
			node.Rows, node.Cols, node.Learnable, node.NeedGradient, string(value)); err != nil {
			return fmt.Errorf("save node %q: %w", node.name, err)
		}
		for slot, in := range node.inputs {
			if in == nil {
				return fmt.Errorf("%w: input %d of %q is unset", ErrNodeNotFound, slot, node.name)
			}
			if _, err := insEdge.Exec(node.name, slot, in.name); err != nil {
				return fmt.Errorf("save edge %q[%d]: %w", node.name, slot, err)
			}
		}
	}

	insRole, err := tx.Prepare("INSERT INTO roles (role, ord, node_name) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer insRole.Close()
	for _, role := range []Role{RoleFeature, RoleLabel, RoleCriterion, RoleEvaluation, RoleOutput} {
		for ord, member := range n.roles[role] {
			if _, err := insRole.Exec(role.String(), ord, member.name); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// LoadFromFile reads a model file written by SaveToFile.
func LoadFromFile(path string) (*Network, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer db.Close()

	var version int
	if err := db.QueryRow("SELECT format_version FROM models WHERE id = 1").Scan(&version); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelFormat, path, err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrModelFormat, version)
	}

	net := New()
	rows, err := db.Query(
		"SELECT id, name, op, rows, cols, learnable, need_gradient, value FROM nodes ORDER BY ord")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name, op, value string
		node := &Node{}
		if err := rows.Scan(&id, &name, &op, &node.Rows, &node.Cols,
			&node.Learnable, &node.NeedGradient, &value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
		}
		if node.id, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: node %q: %v", ErrModelFormat, name, err)
		}
		if err := json.Unmarshal([]byte(value), &node.Value); err != nil {
			return nil, fmt.Errorf("%w: node %q value: %v", ErrModelFormat, name, err)
		}
		node.name = name
		node.Op = op
		if err := net.insert(node); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
	}

	edges, err := db.Query("SELECT node_name, slot, input_name FROM edges ORDER BY node_name, slot")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
	}
	defer edges.Close()
	for edges.Next() {
		var nodeName, inputName string
		var slot int
		if err := edges.Scan(&nodeName, &slot, &inputName); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
		}
		node, input := net.Node(nodeName), net.Node(inputName)
		if node == nil || input == nil {
			return nil, fmt.Errorf("%w: edge %q[%d] -> %q", ErrModelFormat, nodeName, slot, inputName)
		}
		node.SetInput(slot, input)
	}
	if err := edges.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
	}

	roleByName := map[string]Role{}
	for _, role := range []Role{RoleFeature, RoleLabel, RoleCriterion, RoleEvaluation, RoleOutput} {
		roleByName[role.String()] = role
	}
	members, err := db.Query("SELECT role, node_name FROM roles ORDER BY role, ord")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
	}
	defer members.Close()
	for members.Next() {
		var roleName, nodeName string
		if err := members.Scan(&roleName, &nodeName); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
		}
		role, ok := roleByName[roleName]
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q", ErrModelFormat, roleName)
		}
		node := net.Node(nodeName)
		if node == nil {
			return nil, fmt.Errorf("%w: role %q member %q", ErrModelFormat, roleName, nodeName)
		}
		net.SetRole(node, role, true)
	}
	if err := members.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
	}
	return net, nil
}
